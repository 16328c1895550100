// Package notionsync mirrors the current subscription list into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/jomei/notionapi"
)

// PageSize is the number of pages requested per database query.
const PageSize = 100

// SyncResult counts what a sync did, or would do in a dry run.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncSubscriptions makes the Notion database hold exactly one page per
// subscription. Existing pages are matched on the Subscription ID property
// and updated in place, missing ones are created, and pages for
// subscriptions that no longer exist are archived. Failures on single pages
// are logged and counted; only a failed database query aborts the sync.
func SyncSubscriptions(ctx context.Context, subs []domain.Subscription, notionClient NotionService, notionDBID string, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var result SyncResult

	log.Info().
		Int("subscription_count", len(subs)).
		Bool("dry_run", dryRun).
		Msg("Starting subscription sync to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return result, fmt.Errorf("SyncSubscriptions: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(subs))
	for _, sub := range subs {
		valid[sub.ID] = true
	}

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		subID := extractSubscriptionID(page)

		// Stale pages, and duplicates of a page already kept, are archived.
		if subID == "" || !valid[subID] || existing[subID] != "" {
			pageLog := log.With().Str("subscription_id", subID).Str("page_id", string(page.ID)).Logger()
			if dryRun {
				pageLog.Info().Msg("[DRY RUN] Would delete stale Notion page")
				result.Deleted++
				continue
			}
			if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
				pageLog.Warn().Err(err).Msg("Failed to delete stale Notion page")
				result.Failed++
				continue
			}
			pageLog.Info().Msg("Deleted stale Notion page")
			result.Deleted++
			continue
		}

		existing[subID] = string(page.ID)
	}

	for _, sub := range subs {
		pageID := existing[sub.ID]

		if dryRun {
			if pageID != "" {
				log.Info().Str("subscription_id", sub.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				result.Updated++
			} else {
				log.Info().Str("subscription_id", sub.ID).Msg("[DRY RUN] Would create Notion page")
				result.Created++
			}
			continue
		}

		props := SubscriptionToNotionProperties(sub)

		if pageID != "" {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("subscription_id", sub.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			log.Debug().Str("subscription_id", sub.ID).Str("page_id", pageID).Msg("Updated Notion page")
			result.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().Str("subscription_id", sub.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Msg("Subscription sync completed")

	return result, nil
}

// queryAllNotionPages queries all pages from a Notion database, following
// pagination cursors.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: PageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractSubscriptionID returns the Subscription ID property of a page, or "".
func extractSubscriptionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropSubscriptionID]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	case notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	}
	return ""
}
