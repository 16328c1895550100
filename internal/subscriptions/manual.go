package subscriptions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidSubscription is returned when a manual subscription fails validation.
var ErrInvalidSubscription = errors.New("invalid subscription")

var manualTags = []string{"Subscription", "Manual"}

// ManualInput is a subscription entered by hand.
type ManualInput struct {
	Name            string
	Amount          decimal.Decimal
	Currency        string
	Frequency       domain.Frequency
	NextBillingDate time.Time
	Notes           string
}

// Validate checks the fields a manual subscription cannot do without.
func (in ManualInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSubscription)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidSubscription)
	}
	if strings.TrimSpace(in.Currency) == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidSubscription)
	}
	if _, err := domain.ParseFrequency(string(in.Frequency)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	if in.NextBillingDate.IsZero() {
		return fmt.Errorf("%w: next billing date is required", ErrInvalidSubscription)
	}
	return nil
}

// NewManual builds a MANUAL subscription from validated input. The last
// billing date is unknown and set to now.
func NewManual(in ManualInput, now time.Time) (*domain.Subscription, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	// Validate accepted the frequency, so the error is nil here.
	frequency, _ := domain.ParseFrequency(string(in.Frequency))
	name := strings.TrimSpace(in.Name)

	tags := make([]string, len(manualTags))
	copy(tags, manualTags)

	sub := &domain.Subscription{
		ID:   "manual-" + uuid.New().String(),
		Name: name,
		Merchant: domain.MerchantInfo{
			RawText:    name,
			Normalized: name,
		},
		Status:          domain.SubscriptionStatusActive,
		DetectionMethod: domain.DetectionMethodManual,
		Confidence:      100,
		Amount: domain.AmountInfo{
			Current:  in.Amount,
			Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
		},
		Billing: domain.Billing{
			Frequency:       frequency,
			NextBillingDate: in.NextBillingDate,
			LastBillingDate: now,
		},
		History: []domain.HistoryEntry{},
		Tags:    tags,
	}

	if in.Notes != "" {
		sub.Metadata = &domain.Metadata{Notes: in.Notes}
	}

	return sub, nil
}
