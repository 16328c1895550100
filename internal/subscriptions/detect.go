package subscriptions

import (
	"context"
	"sort"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many merchant groups are analyzed at once.
const DefaultConcurrency = 8

// Detector turns a batch of transactions into subscriptions.
type Detector struct {
	analyzer    *Analyzer
	concurrency int
}

// NewDetector creates a Detector. A concurrency below one falls back to
// DefaultConcurrency.
func NewDetector(h Heuristics, concurrency int) *Detector {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Detector{
		analyzer:    NewAnalyzer(h),
		concurrency: concurrency,
	}
}

// Detect groups the transactions by merchant, analyzes every group and
// returns the detected subscriptions ordered by next billing date.
// It never fails: an empty, non-nil slice is returned when nothing qualifies.
// The context only carries the logger.
func (d *Detector) Detect(ctx context.Context, transactions []domain.Transaction) []domain.Subscription {
	log := logger.FromContext(ctx)

	groups := GroupByMerchant(transactions)
	merchants := sortedMerchants(groups)

	// Each goroutine writes only its own slot.
	results := make([]*domain.Subscription, len(merchants))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, merchant := range merchants {
		group := groups[merchant]
		g.Go(func() error {
			results[i] = d.analyzer.Analyze(group)
			return nil
		})
	}
	_ = g.Wait()

	subs := make([]domain.Subscription, 0, len(results))
	for _, sub := range results {
		if sub != nil {
			subs = append(subs, *sub)
		}
	}

	SortByNextBilling(subs)

	log.Debug().
		Int("transactions", len(transactions)).
		Int("merchants", len(merchants)).
		Int("subscriptions", len(subs)).
		Msg("Subscription detection completed")

	return subs
}

// SortByNextBilling orders subscriptions by next billing date, soonest
// first, with the ID as tie-breaker.
func SortByNextBilling(subs []domain.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i].Billing.NextBillingDate, subs[j].Billing.NextBillingDate
		if !a.Equal(b) {
			return a.Before(b)
		}
		return subs[i].ID < subs[j].ID
	})
}

// Detect runs detection with the default heuristics.
func Detect(ctx context.Context, transactions []domain.Transaction) []domain.Subscription {
	return NewDetector(DefaultHeuristics(), DefaultConcurrency).Detect(ctx, transactions)
}
