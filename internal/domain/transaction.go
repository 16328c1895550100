package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state reported by the bank feed.
type TransactionStatus string

const (
	TransactionStatusHeld    TransactionStatus = "HELD"
	TransactionStatusSettled TransactionStatus = "SETTLED"
)

// Money mirrors the bank feed money object: a signed decimal value, the same
// value in minor units, and the ISO currency code.
type Money struct {
	CurrencyCode     string          `json:"currencyCode"`
	Value            decimal.Decimal `json:"value"`
	ValueInBaseUnits int64           `json:"valueInBaseUnits"`
}

// IsDebit reports whether money left the account.
func (m Money) IsDebit() bool {
	return m.Value.IsNegative()
}

// Transaction is one bank feed record as consumed by subscription detection.
// This is a domain struct, not a feed document; feed.Decode maps feed
// resources into it.
type Transaction struct {
	ID          string            // feed resource id
	RawText     *string           // merchant text as printed by the card network, nil if absent
	Description string            // bank-cleaned description
	Amount      Money             // negative = debit, positive = credit
	CreatedAt   time.Time         // transaction creation instant
	Status      TransactionStatus // HELD or SETTLED
}

// MerchantText returns the text used to identify the merchant: the raw
// text when present, otherwise the description.
func (t Transaction) MerchantText() string {
	if t.RawText != nil && *t.RawText != "" {
		return *t.RawText
	}
	return t.Description
}
