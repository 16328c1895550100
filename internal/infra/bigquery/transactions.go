package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// TransactionRow is the subset of finance.transactions a scan reads.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	RawDescription        string              `bigquery:"raw_description"`        // REQUIRED STRING
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description"` // NULLABLE STRING

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, negative for debits
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	TransactionDate civil.Date            `bigquery:"transaction_date"` // REQUIRED
	BookingDatetime bigquery.NullDateTime `bigquery:"booking_datetime"` // NULLABLE

	IsPending bigquery.NullBool `bigquery:"is_pending"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// QueryTransactionsByDateRangeWithClient queries transactions within the
// specified date range using the provided BigQuery client.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			raw_description,
			normalized_description,
			amount,
			currency,
			transaction_date,
			booking_datetime,
			is_pending,
			created_ts
		FROM %s
		WHERE transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date DESC, created_ts DESC
	`, tableRef(projectID, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// RowsToTransactions maps warehouse rows to domain transactions.
func RowsToTransactions(rows []*TransactionRow) ([]domain.Transaction, error) {
	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := RowToTransaction(row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// RowToTransaction maps one row. The raw description becomes the merchant
// raw text; the normalized description, when set, becomes the description.
// Rows without a booking time are placed at midnight UTC of the transaction date.
func RowToTransaction(row *TransactionRow) (domain.Transaction, error) {
	if row.Amount == nil {
		return domain.Transaction{}, fmt.Errorf("RowToTransaction: %s: amount is null", row.TransactionID)
	}

	value, err := decimal.NewFromString(row.Amount.FloatString(9))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("RowToTransaction: %s: amount: %w", row.TransactionID, err)
	}

	createdAt := row.TransactionDate.In(time.UTC)
	if row.BookingDatetime.Valid {
		createdAt = row.BookingDatetime.DateTime.In(time.UTC)
	}

	status := domain.TransactionStatusSettled
	if row.IsPending.Valid && row.IsPending.Bool {
		status = domain.TransactionStatusHeld
	}

	description := row.RawDescription
	if row.NormalizedDescription.Valid && strings.TrimSpace(row.NormalizedDescription.StringVal) != "" {
		description = row.NormalizedDescription.StringVal
	}

	var rawText *string
	if strings.TrimSpace(row.RawDescription) != "" {
		raw := row.RawDescription
		rawText = &raw
	}

	return domain.Transaction{
		ID:          row.TransactionID,
		RawText:     rawText,
		Description: description,
		Amount: domain.Money{
			CurrencyCode:     strings.ToUpper(row.Currency),
			Value:            value,
			ValueInBaseUnits: value.Shift(2).IntPart(),
		},
		CreatedAt: createdAt,
		Status:    status,
	}, nil
}
