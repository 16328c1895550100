package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// SubscriptionRow is one subscription as seen by one scan in finance.subscriptions.
type SubscriptionRow struct {
	ScanID     string    `bigquery:"scan_id"`     // REQUIRED
	SnapshotTS time.Time `bigquery:"snapshot_ts"` // REQUIRED

	SubscriptionID     string `bigquery:"subscription_id"`     // REQUIRED
	Name               string `bigquery:"name"`                // REQUIRED
	MerchantRawText    string `bigquery:"merchant_raw_text"`   // REQUIRED
	MerchantNormalized string `bigquery:"merchant_normalized"` // REQUIRED

	Status          string `bigquery:"status"`           // ACTIVE, PAUSED, CANCELLED
	DetectionMethod string `bigquery:"detection_method"` // AUTO, MANUAL
	Confidence      int64  `bigquery:"confidence"`

	Amount   *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"`

	Frequency       string             `bigquery:"frequency"`
	CycleDays       bigquery.NullInt64 `bigquery:"cycle_days"`
	NextBillingDate civil.Date         `bigquery:"next_billing_date"`
	LastBillingDate civil.Date         `bigquery:"last_billing_date"`

	PriceChangeAmount     *big.Rat             `bigquery:"price_change_amount"`     // NULLABLE NUMERIC
	PriceChangePercentage bigquery.NullFloat64 `bigquery:"price_change_percentage"` // NULLABLE
	PriceChangeDate       bigquery.NullDate    `bigquery:"price_change_date"`       // NULLABLE

	IsShared  bool     `bigquery:"is_shared"`
	YourShare *big.Rat `bigquery:"your_share"` // NULLABLE NUMERIC

	Category     bigquery.NullString `bigquery:"category"` // NULLABLE
	Tags         []string            `bigquery:"tags"`     // REPEATED STRING
	HistoryCount int64               `bigquery:"history_count"`
}

// NewSubscriptionRows builds snapshot rows for one scan.
func NewSubscriptionRows(scanID string, subs []domain.Subscription, at time.Time) []*SubscriptionRow {
	rows := make([]*SubscriptionRow, 0, len(subs))
	for _, sub := range subs {
		row := &SubscriptionRow{
			ScanID:             scanID,
			SnapshotTS:         at.UTC(),
			SubscriptionID:     sub.ID,
			Name:               sub.Name,
			MerchantRawText:    sub.Merchant.RawText,
			MerchantNormalized: sub.Merchant.Normalized,
			Status:             string(sub.Status),
			DetectionMethod:    string(sub.DetectionMethod),
			Confidence:         int64(sub.Confidence),
			Amount:             sub.Amount.Current.Rat(),
			Currency:           sub.Amount.Currency,
			Frequency:          string(sub.Billing.Frequency),
			NextBillingDate:    civil.DateOf(sub.Billing.NextBillingDate),
			LastBillingDate:    civil.DateOf(sub.Billing.LastBillingDate),
			Tags:               sub.Tags,
			HistoryCount:       int64(len(sub.History)),
		}

		if sub.Billing.CycleDays > 0 {
			row.CycleDays = bigquery.NullInt64{Int64: int64(sub.Billing.CycleDays), Valid: true}
		}
		if pc := sub.PriceChange; pc != nil {
			row.PriceChangeAmount = pc.Amount.Rat()
			row.PriceChangePercentage = bigquery.NullFloat64{Float64: pc.Percentage, Valid: true}
			row.PriceChangeDate = bigquery.NullDate{Date: civil.DateOf(pc.Date), Valid: true}
		}
		if sh := sub.Sharing; sh != nil && sh.IsShared {
			row.IsShared = true
			row.YourShare = sh.YourShare.Rat()
		}
		if sub.Category != "" {
			row.Category = bigquery.NullString{StringVal: sub.Category, Valid: true}
		}

		rows = append(rows, row)
	}
	return rows
}

// InsertSubscriptionRowsWithClient appends snapshot rows to finance.subscriptions
// using the provided BigQuery client.
func InsertSubscriptionRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*SubscriptionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(subscriptionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertSubscriptionRows: inserting rows: %w", err)
	}
	return nil
}
