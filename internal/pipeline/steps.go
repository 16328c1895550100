// Package pipeline runs a subscription scan as an ordered list of steps:
// fetch the feed, decode it, detect subscriptions, categorize them, store
// them, and publish them to BigQuery and Notion.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/categorize"
	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/feed"
	"github.com/dvloznov/subscription-tracker/internal/jobs"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/dvloznov/subscription-tracker/internal/notionsync"
	"github.com/dvloznov/subscription-tracker/internal/store"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
)

// DefaultLookback is the BigQuery date range used when a scan gives none.
const DefaultLookback = 365 * 24 * time.Hour

// PipelineStep represents a single step in the scan pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *ScanState) error
}

// ScanState holds the shared state across all pipeline steps.
type ScanState struct {
	ScanID    string
	Source    string
	StartDate *time.Time
	EndDate   *time.Time
	StartedAt time.Time

	FeedBytes     []byte
	Transactions  []domain.Transaction
	Skipped       []feed.SkippedRecord
	Subscriptions []domain.Subscription

	NotionResult *notionsync.SyncResult
}

// FetchFeedStep loads the scan source: a gs:// URI, jobs.SourceBigQuery,
// jobs.SourceDemo or a local path. Feed documents end up in FeedBytes;
// BigQuery and demo sources produce Transactions directly.
type FetchFeedStep struct {
	Storage      FeedFetcher
	Transactions TransactionSource
	// DemoSeed seeds the demo generator; zero uses the clock.
	DemoSeed int64
}

func (s *FetchFeedStep) Execute(ctx context.Context, state *ScanState) error {
	switch {
	case strings.HasPrefix(state.Source, "gs://"):
		if s.Storage == nil {
			return fmt.Errorf("FetchFeedStep: no storage configured for %s", state.Source)
		}
		data, err := s.Storage.FetchFromGCS(ctx, state.Source)
		if err != nil {
			return fmt.Errorf("FetchFeedStep: %w", err)
		}
		state.FeedBytes = data

	case state.Source == jobs.SourceBigQuery:
		if s.Transactions == nil {
			return fmt.Errorf("FetchFeedStep: no transaction source configured")
		}
		end := state.StartedAt
		if state.EndDate != nil {
			end = *state.EndDate
		}
		start := end.Add(-DefaultLookback)
		if state.StartDate != nil {
			start = *state.StartDate
		}
		if start.After(end) {
			return fmt.Errorf("FetchFeedStep: start date %s is after end date %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
		txs, err := s.Transactions.QueryTransactionsByDateRange(ctx, start, end)
		if err != nil {
			return fmt.Errorf("FetchFeedStep: %w", err)
		}
		state.Transactions = txs

	case state.Source == jobs.SourceDemo:
		seed := s.DemoSeed
		if seed == 0 {
			seed = state.StartedAt.UnixNano()
		}
		state.Transactions = feed.GenerateDemo(state.StartedAt, rand.New(rand.NewSource(seed)))

	case state.Source == "":
		return fmt.Errorf("FetchFeedStep: source is required")

	default:
		data, err := os.ReadFile(strings.TrimPrefix(state.Source, "file://"))
		if err != nil {
			return fmt.Errorf("FetchFeedStep: reading %s: %w", state.Source, err)
		}
		state.FeedBytes = data
	}

	return nil
}

// DecodeFeedStep turns FeedBytes into transactions. Malformed records are
// logged and counted, not fatal.
type DecodeFeedStep struct{}

func (s *DecodeFeedStep) Execute(ctx context.Context, state *ScanState) error {
	if state.FeedBytes == nil {
		return nil
	}

	result, err := feed.Decode(state.FeedBytes)
	if err != nil {
		return fmt.Errorf("DecodeFeedStep: %w", err)
	}

	log := logger.FromContext(ctx)
	for _, skipped := range result.Skipped {
		log.Warn().
			Str("scan_id", state.ScanID).
			Int("index", skipped.Index).
			Str("transaction_id", skipped.ID).
			Str("reason", skipped.Reason).
			Msg("Skipping malformed feed record")
	}

	state.Transactions = result.Transactions
	state.Skipped = result.Skipped
	return nil
}

// DetectStep runs subscription detection over the decoded transactions.
type DetectStep struct {
	Detector *subscriptions.Detector
}

func (s *DetectStep) Execute(ctx context.Context, state *ScanState) error {
	state.Subscriptions = s.Detector.Detect(ctx, state.Transactions)

	log := logger.FromContext(ctx)
	log.Info().
		Str("scan_id", state.ScanID).
		Int("transactions", len(state.Transactions)).
		Int("subscriptions", len(state.Subscriptions)).
		Msg("Detection finished")
	return nil
}

// CategorizeStep fills in categories. Categories are an enrichment, so a
// failing categorizer is logged and the scan goes on.
type CategorizeStep struct {
	Categorizer categorize.Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *ScanState) error {
	if err := s.Categorizer.Categorize(ctx, state.Subscriptions); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("scan_id", state.ScanID).
			Msg("Categorization failed, continuing without categories")
	}
	return nil
}

// StoreStep replaces the detected subscriptions in the store.
type StoreStep struct {
	Store store.Store
}

func (s *StoreStep) Execute(ctx context.Context, state *ScanState) error {
	if err := s.Store.ReplaceDetected(ctx, state.Subscriptions); err != nil {
		return fmt.Errorf("StoreStep: %w", err)
	}
	return nil
}

// SnapshotStep appends the scan's subscriptions to the warehouse.
type SnapshotStep struct {
	Writer SnapshotWriter
}

func (s *SnapshotStep) Execute(ctx context.Context, state *ScanState) error {
	if err := s.Writer.InsertSubscriptionSnapshot(ctx, state.ScanID, state.Subscriptions, state.StartedAt); err != nil {
		return fmt.Errorf("SnapshotStep: %w", err)
	}
	return nil
}

// NotionSyncStep mirrors subscriptions into a Notion database. With a Store
// the full stored list is synced, manual entries included.
type NotionSyncStep struct {
	Service    notionsync.NotionService
	DatabaseID string
	Store      store.Store
	DryRun     bool
}

func (s *NotionSyncStep) Execute(ctx context.Context, state *ScanState) error {
	subs := state.Subscriptions
	if s.Store != nil {
		stored, err := s.Store.List(ctx, store.Filter{})
		if err != nil {
			return fmt.Errorf("NotionSyncStep: %w", err)
		}
		subs = stored
	}

	result, err := notionsync.SyncSubscriptions(ctx, subs, s.Service, s.DatabaseID, s.DryRun)
	if err != nil {
		return fmt.Errorf("NotionSyncStep: %w", err)
	}
	state.NotionResult = &result
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *ScanState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
