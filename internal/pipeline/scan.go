package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/categorize"
	"github.com/dvloznov/subscription-tracker/internal/jobs"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/dvloznov/subscription-tracker/internal/notionsync"
	"github.com/dvloznov/subscription-tracker/internal/store"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
	"github.com/google/uuid"
)

// Dependencies wires a scan pipeline. Only Detector is required; steps
// whose dependency is nil are left out.
type Dependencies struct {
	Storage      FeedFetcher
	Transactions TransactionSource
	Detector     *subscriptions.Detector
	Categorizer  categorize.Categorizer
	Store        store.Store
	Snapshots    SnapshotWriter

	Notion           notionsync.NotionService
	NotionDatabaseID string

	DemoSeed int64
}

// NewScanPipeline builds the scan pipeline for deps.
func NewScanPipeline(deps Dependencies) *Pipeline {
	detector := deps.Detector
	if detector == nil {
		detector = subscriptions.NewDetector(subscriptions.DefaultHeuristics(), subscriptions.DefaultConcurrency)
	}

	steps := []PipelineStep{
		&FetchFeedStep{Storage: deps.Storage, Transactions: deps.Transactions, DemoSeed: deps.DemoSeed},
		&DecodeFeedStep{},
		&DetectStep{Detector: detector},
	}
	if deps.Categorizer != nil {
		steps = append(steps, &CategorizeStep{Categorizer: deps.Categorizer})
	}
	if deps.Store != nil {
		steps = append(steps, &StoreStep{Store: deps.Store})
	}
	if deps.Snapshots != nil {
		steps = append(steps, &SnapshotStep{Writer: deps.Snapshots})
	}
	if deps.Notion != nil && deps.NotionDatabaseID != "" {
		steps = append(steps, &NotionSyncStep{Service: deps.Notion, DatabaseID: deps.NotionDatabaseID, Store: deps.Store})
	}

	return NewPipeline(steps...)
}

// Scan runs the pipeline for one source and returns the final state.
// The state is returned even when a step fails.
func (p *Pipeline) Scan(ctx context.Context, source string, start, end *time.Time) (*ScanState, error) {
	state := &ScanState{
		ScanID:    uuid.NewString(),
		Source:    source,
		StartDate: start,
		EndDate:   end,
		StartedAt: time.Now().UTC(),
	}

	log := logger.FromContext(ctx).With().Str("scan_id", state.ScanID).Str("source", source).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("Starting scan")
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Scan failed")
		return state, err
	}

	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("skipped", len(state.Skipped)).
		Int("subscriptions", len(state.Subscriptions)).
		Dur("elapsed", time.Since(state.StartedAt)).
		Msg("Scan completed")
	return state, nil
}

// ScanJobHandler adapts the pipeline to the job queue. The scan counts are
// written to the job's Result on success.
func ScanJobHandler(p *Pipeline) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		scanJob, ok := job.(*jobs.ScanJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx).With().Str("job_id", scanJob.JobID).Int("attempt", scanJob.RetryCount+1).Logger()
		state, err := p.Scan(logger.WithContext(ctx, log), scanJob.Source, scanJob.StartDate, scanJob.EndDate)
		if err != nil {
			return err
		}

		scanJob.Result = &jobs.ScanResult{
			Transactions:  len(state.Transactions),
			Skipped:       len(state.Skipped),
			Subscriptions: len(state.Subscriptions),
		}
		return nil
	}
}
