package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// ParseSubscriptionStatus converts a case-insensitive status name.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case SubscriptionStatusActive, SubscriptionStatusPaused, SubscriptionStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("invalid subscription status %q", s)
	}
}

// DetectionMethod records how a subscription entered the system.
type DetectionMethod string

const (
	DetectionMethodAuto   DetectionMethod = "AUTO"
	DetectionMethodManual DetectionMethod = "MANUAL"
)

// Frequency is the inferred billing cadence.
type Frequency string

const (
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyFortnightly Frequency = "FORTNIGHTLY"
	FrequencyMonthly     Frequency = "MONTHLY"
	FrequencyQuarterly   Frequency = "QUARTERLY"
	FrequencyBiannual    Frequency = "BIANNUAL"
	FrequencyAnnual      Frequency = "ANNUAL"
)

// Frequencies lists every cadence from shortest to longest.
var Frequencies = []Frequency{
	FrequencyWeekly,
	FrequencyFortnightly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyBiannual,
	FrequencyAnnual,
}

// ParseFrequency converts a case-insensitive frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Frequencies {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q", s)
}

// Subscription is a recurring payment, either detected from the feed or
// added by hand.
type Subscription struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Merchant        MerchantInfo       `json:"merchant"`
	Status          SubscriptionStatus `json:"status"`
	DetectionMethod DetectionMethod    `json:"detectionMethod"`
	Confidence      int                `json:"confidence"`
	Amount          AmountInfo         `json:"amount"`
	PriceChange     *PriceChange       `json:"priceChange,omitempty"`
	Sharing         *Sharing           `json:"sharing,omitempty"`
	Billing         Billing            `json:"billing"`
	History         []HistoryEntry     `json:"history"`
	Category        string             `json:"category,omitempty"`
	Tags            []string           `json:"tags"`
	Metadata        *Metadata          `json:"metadata,omitempty"`
}

// MerchantInfo keeps both the raw merchant text and its canonical key.
type MerchantInfo struct {
	RawText    string `json:"rawText"`
	Normalized string `json:"normalized"`
	Logo       string `json:"logo,omitempty"`
}

// AmountInfo is the current charge.
type AmountInfo struct {
	Current  decimal.Decimal `json:"current"`
	Currency string          `json:"currency"`
}

// PriceChange is a step change between the two most recent charges.
// Amount is positive for an increase.
type PriceChange struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
	Date       time.Time       `json:"date"`
}

// Sharing describes a cost split with other people.
type Sharing struct {
	IsShared   bool            `json:"isShared"`
	SharedWith []string        `json:"sharedWith"`
	YourShare  decimal.Decimal `json:"yourShare"`
	TotalCost  decimal.Decimal `json:"totalCost"`
}

// Billing holds cadence and the billing dates.
type Billing struct {
	Frequency       Frequency `json:"frequency"`
	CycleDays       int       `json:"cycleDays,omitempty"`
	NextBillingDate time.Time `json:"nextBillingDate"`
	LastBillingDate time.Time `json:"lastBillingDate"`
}

// HistoryEntry is one charge attributed to a subscription.
type HistoryEntry struct {
	TransactionID string            `json:"transactionId"`
	Date          time.Time         `json:"date"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
}

// Metadata carries user preferences for a subscription.
type Metadata struct {
	StartDate       *time.Time `json:"startDate,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	RenewalReminder bool       `json:"renewalReminder,omitempty"`
	PriceAlerts     bool       `json:"priceAlerts,omitempty"`
}
