package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

type mockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *mockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.UpdatePageFunc(ctx, pageID, properties)
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, filter)
}

func (m *mockNotionService) DeletePage(ctx context.Context, pageID string) error {
	return m.DeletePageFunc(ctx, pageID)
}

func notionPage(pageID, subID string) notionapi.Page {
	props := notionapi.Properties{}
	if subID != "" {
		props[PropSubscriptionID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: subID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func testSub(id string) domain.Subscription {
	return domain.Subscription{
		ID:              id,
		Name:            id,
		Status:          domain.SubscriptionStatusActive,
		DetectionMethod: domain.DetectionMethodAuto,
		Confidence:      90,
		Amount:          domain.AmountInfo{Current: decimal.RequireFromString("12.99"), Currency: "AUD"},
		Billing: domain.Billing{
			Frequency:       domain.FrequencyMonthly,
			NextBillingDate: time.Date(2024, time.July, 3, 9, 30, 0, 0, time.UTC),
		},
	}
}

// recordingService pages through two query responses and records writes.
func recordingService(created, updated, deleted *[]string) *mockNotionService {
	return &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			if filter.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{notionPage("page-1", "sub-netflix"), notionPage("page-2", "sub-gone")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{notionPage("page-3", ""), notionPage("page-4", "sub-netflix")},
			}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			id := properties[PropSubscriptionID].(notionapi.RichTextProperty).RichText[0].Text.Content
			*created = append(*created, id)
			return &notionapi.Page{ID: "new-page"}, nil
		},
		UpdatePageFunc: func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
			*updated = append(*updated, pageID)
			return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			*deleted = append(*deleted, pageID)
			return nil
		},
	}
}

func TestSyncSubscriptions(t *testing.T) {
	var created, updated, deleted []string
	svc := recordingService(&created, &updated, &deleted)

	subs := []domain.Subscription{testSub("sub-netflix"), testSub("sub-spotify")}
	result, err := SyncSubscriptions(context.Background(), subs, svc, "db-1", false)
	if err != nil {
		t.Fatalf("SyncSubscriptions() error = %v", err)
	}

	want := SyncResult{Created: 1, Updated: 1, Deleted: 3}
	if result != want {
		t.Errorf("SyncSubscriptions() = %+v, want %+v", result, want)
	}
	if len(created) != 1 || created[0] != "sub-spotify" {
		t.Errorf("Expected sub-spotify to be created, got %v", created)
	}
	if len(updated) != 1 || updated[0] != "page-1" {
		t.Errorf("Expected page-1 to be updated, got %v", updated)
	}
	wantDeleted := []string{"page-2", "page-3", "page-4"}
	if len(deleted) != len(wantDeleted) {
		t.Fatalf("Expected %v to be deleted, got %v", wantDeleted, deleted)
	}
	for i := range wantDeleted {
		if deleted[i] != wantDeleted[i] {
			t.Errorf("deleted[%d] = %s, want %s", i, deleted[i], wantDeleted[i])
		}
	}
}

func TestSyncSubscriptions_DryRun(t *testing.T) {
	var created, updated, deleted []string
	svc := recordingService(&created, &updated, &deleted)

	subs := []domain.Subscription{testSub("sub-netflix"), testSub("sub-spotify")}
	result, err := SyncSubscriptions(context.Background(), subs, svc, "db-1", true)
	if err != nil {
		t.Fatalf("SyncSubscriptions() error = %v", err)
	}

	want := SyncResult{Created: 1, Updated: 1, Deleted: 3}
	if result != want {
		t.Errorf("SyncSubscriptions() = %+v, want %+v", result, want)
	}
	if len(created)+len(updated)+len(deleted) != 0 {
		t.Error("Expected dry run to make no writes")
	}
}

func TestSyncSubscriptions_Failures(t *testing.T) {
	svc := &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{notionPage("page-1", "sub-old")}}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			return nil, errors.New("rate limited")
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			return errors.New("forbidden")
		},
	}

	result, err := SyncSubscriptions(context.Background(), []domain.Subscription{testSub("sub-new")}, svc, "db-1", false)
	if err != nil {
		t.Fatalf("Expected page failures not to abort the sync, got %v", err)
	}
	if result.Failed != 2 || result.Created != 0 || result.Deleted != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestSyncSubscriptions_QueryError(t *testing.T) {
	svc := &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}

	if _, err := SyncSubscriptions(context.Background(), nil, svc, "db-1", false); err == nil {
		t.Error("Expected query error to be returned")
	}
}

func TestSubscriptionToNotionProperties(t *testing.T) {
	sub := testSub("sub-netflix")
	sub.Category = "Entertainment"
	sub.Sharing = &domain.Sharing{IsShared: true, SharedWith: []string{"Partner"}, YourShare: decimal.RequireFromString("9.50")}
	sub.PriceChange = &domain.PriceChange{Amount: decimal.RequireFromString("2.00"), Percentage: 11.77}

	props := SubscriptionToNotionProperties(sub)

	if got := props[PropName].(notionapi.TitleProperty).Title[0].Text.Content; got != "sub-netflix" {
		t.Errorf("Name = %q", got)
	}
	if got := props[PropAmount].(notionapi.NumberProperty).Number; got != 12.99 {
		t.Errorf("Amount = %v, want 12.99", got)
	}
	if got := props[PropFrequency].(notionapi.SelectProperty).Select.Name; got != "MONTHLY" {
		t.Errorf("Frequency = %q", got)
	}
	if got := props[PropStatus].(notionapi.SelectProperty).Select.Name; got != "ACTIVE" {
		t.Errorf("Status = %q", got)
	}
	if !props[PropShared].(notionapi.CheckboxProperty).Checkbox {
		t.Error("Expected Shared to be checked")
	}
	if got := props[PropYourShare].(notionapi.NumberProperty).Number; got != 9.5 {
		t.Errorf("Your Share = %v, want 9.5", got)
	}
	if got := props[PropPriceChange].(notionapi.NumberProperty).Number; got != 2 {
		t.Errorf("Price Change = %v, want 2", got)
	}

	next := time.Time(*props[PropNextBilling].(notionapi.DateProperty).Date.Start)
	if !next.Equal(time.Date(2024, time.July, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Next Billing = %v", next)
	}
}

func TestSubscriptionToNotionProperties_Minimal(t *testing.T) {
	props := SubscriptionToNotionProperties(domain.Subscription{ID: "manual-1", Name: "Gym"})

	for _, key := range []string{PropCategory, PropYourShare, PropPriceChange, PropNextBilling, PropCurrency} {
		if _, ok := props[key]; ok {
			t.Errorf("Expected %s to be omitted", key)
		}
	}
	if props[PropShared].(notionapi.CheckboxProperty).Checkbox {
		t.Error("Expected Shared to be unchecked")
	}
}

func TestExtractSubscriptionID(t *testing.T) {
	tests := []struct {
		name string
		page notionapi.Page
		want string
	}{
		{"pointer property", notionPage("p", "sub-a"), "sub-a"},
		{"missing property", notionPage("p", ""), ""},
		{
			"value property",
			notionapi.Page{Properties: notionapi.Properties{
				PropSubscriptionID: notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "sub-b"}}},
			}},
			"sub-b",
		},
		{
			"empty rich text",
			notionapi.Page{Properties: notionapi.Properties{PropSubscriptionID: &notionapi.RichTextProperty{}}},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSubscriptionID(tt.page); got != tt.want {
				t.Errorf("extractSubscriptionID() = %q, want %q", got, tt.want)
			}
		})
	}
}
