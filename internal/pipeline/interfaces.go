package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// FeedFetcher downloads a feed document from Cloud Storage.
// gcsuploader.StorageService satisfies it.
type FeedFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// TransactionSource reads already-stored transactions for a date range.
// The BigQuery repository satisfies it.
type TransactionSource interface {
	QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error)
}

// SnapshotWriter records the subscriptions a scan produced.
type SnapshotWriter interface {
	InsertSubscriptionSnapshot(ctx context.Context, scanID string, subs []domain.Subscription, at time.Time) error
}
