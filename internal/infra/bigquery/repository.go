// Package bigquery reads bank transactions from and writes subscription
// snapshots to the finance dataset in BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subscription-tracker/internal/domain"
)

const (
	DefaultProjectID = "studious-union-470122-v7"
	DefaultDatasetID = "finance"

	transactionsTable  = "transactions"
	subscriptionsTable = "subscriptions"
	categoriesTable    = "categories"
	dateFormat         = "2006-01-02"
)

// BigQueryRepository holds a shared BigQuery client so a scan does not open
// a new connection per call.
type BigQueryRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRepository creates a repository for projectID.datasetID.
// Empty arguments fall back to the defaults.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	if projectID == "" {
		projectID = DefaultProjectID
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client exposes the shared client for the migration runner.
func (r *BigQueryRepository) Client() *bigquery.Client {
	return r.client
}

// QueryTransactionsByDateRange returns the transactions booked between start
// and end inclusive, mapped to domain transactions.
func (r *BigQueryRepository) QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := QueryTransactionsByDateRangeWithClient(ctx, r.client, r.projectID, r.datasetID, start, end)
	if err != nil {
		return nil, err
	}
	return RowsToTransactions(rows)
}

// InsertSubscriptionSnapshot appends one row per subscription tagged with scanID.
func (r *BigQueryRepository) InsertSubscriptionSnapshot(ctx context.Context, scanID string, subs []domain.Subscription, at time.Time) error {
	return InsertSubscriptionRowsWithClient(ctx, r.client, r.projectID, r.datasetID, NewSubscriptionRows(scanID, subs, at))
}

// ListActiveCategories delegates to ListActiveCategoriesWithClient with the shared client.
func (r *BigQueryRepository) ListActiveCategories(ctx context.Context) ([]CategoryRow, error) {
	return ListActiveCategoriesWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// ActiveCategoryNames returns the display names of active categories.
func (r *BigQueryRepository) ActiveCategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.ListActiveCategories(ctx)
	if err != nil {
		return nil, err
	}
	return CategoryNames(rows), nil
}

func tableRef(projectID, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, table)
}
