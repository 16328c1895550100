package subscriptions

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

func TestMonthlyCost(t *testing.T) {
	tests := []struct {
		frequency domain.Frequency
		amount    string
		want      string
	}{
		{domain.FrequencyWeekly, "10", "43.3"},
		{domain.FrequencyFortnightly, "25", "54"},
		{domain.FrequencyMonthly, "16.99", "16.99"},
		{domain.FrequencyQuarterly, "30", "10"},
		{domain.FrequencyBiannual, "60", "10"},
		{domain.FrequencyAnnual, "120", "10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			got := MonthlyCost(decimal.RequireFromString(tt.amount), tt.frequency)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("MonthlyCost(%s, %s) = %s, want %s", tt.amount, tt.frequency, got, tt.want)
			}
		})
	}
}

func subscriptionFixture(id string, status domain.SubscriptionStatus, amount string, freq domain.Frequency, next time.Time) domain.Subscription {
	return domain.Subscription{
		ID:     id,
		Name:   id,
		Status: status,
		Amount: domain.AmountInfo{
			Current:  decimal.RequireFromString(amount),
			Currency: "AUD",
		},
		Billing: domain.Billing{
			Frequency:       freq,
			NextBillingDate: next,
		},
	}
}

func TestSummarize(t *testing.T) {
	shared := subscriptionFixture("spotify", domain.SubscriptionStatusActive, "18.00", domain.FrequencyMonthly, daysAfter(10))
	shared.Sharing = &domain.Sharing{
		IsShared:   true,
		SharedWith: []string{"Partner"},
		YourShare:  decimal.RequireFromString("9.00"),
		TotalCost:  decimal.RequireFromString("18.00"),
	}
	changed := subscriptionFixture("domain", domain.SubscriptionStatusActive, "120", domain.FrequencyAnnual, daysAfter(20))
	changed.PriceChange = &domain.PriceChange{Amount: decimal.NewFromInt(25)}

	subs := []domain.Subscription{
		shared,
		changed,
		subscriptionFixture("gym", domain.SubscriptionStatusActive, "25", domain.FrequencyFortnightly, daysAfter(5)),
		subscriptionFixture("paused", domain.SubscriptionStatusPaused, "99", domain.FrequencyMonthly, daysAfter(1)),
	}

	summary := Summarize(subs)

	if summary.ActiveCount != 3 {
		t.Errorf("Expected 3 active, got %d", summary.ActiveCount)
	}
	if summary.SharedCount != 1 {
		t.Errorf("Expected 1 shared, got %d", summary.SharedCount)
	}
	if summary.PriceChangeCount != 1 {
		t.Errorf("Expected 1 price change, got %d", summary.PriceChangeCount)
	}

	// 18 + 10 + 54
	if want := decimal.NewFromInt(82); !summary.MonthlyTotals["AUD"].Equal(want) {
		t.Errorf("Expected monthly total %s, got %s", want, summary.MonthlyTotals["AUD"])
	}
	// 9 + 10 + 54
	if want := decimal.NewFromInt(73); !summary.MonthlyYourShare["AUD"].Equal(want) {
		t.Errorf("Expected monthly share %s, got %s", want, summary.MonthlyYourShare["AUD"])
	}
}

func TestBillingCalendar(t *testing.T) {
	subs := []domain.Subscription{
		subscriptionFixture("a", domain.SubscriptionStatusActive, "1", domain.FrequencyMonthly, time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)),
		subscriptionFixture("b", domain.SubscriptionStatusActive, "1", domain.FrequencyMonthly, time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)),
		subscriptionFixture("c", domain.SubscriptionStatusActive, "1", domain.FrequencyMonthly, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)),
		subscriptionFixture("d", domain.SubscriptionStatusActive, "1", domain.FrequencyMonthly, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)),
		subscriptionFixture("e", domain.SubscriptionStatusActive, "1", domain.FrequencyMonthly, time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC)),
	}

	days := BillingCalendar(subs, 2024, time.March, nil)

	if len(days) != 2 {
		t.Fatalf("Expected 2 calendar days, got %d: %v", len(days), days)
	}
	if got := len(days["2024-03-05"]); got != 2 {
		t.Errorf("Expected 2 subscriptions on 2024-03-05, got %d", got)
	}
	if got := len(days["2024-03-31"]); got != 1 {
		t.Errorf("Expected 1 subscription on 2024-03-31, got %d", got)
	}
}

func TestNewManual(t *testing.T) {
	now := daysAfter(0)
	next := daysAfter(15)

	sub, err := NewManual(ManualInput{
		Name:            " Gym ",
		Amount:          decimal.RequireFromString("25.00"),
		Currency:        "aud",
		Frequency:       "fortnightly",
		NextBillingDate: next,
		Notes:           "cancel after summer",
	}, now)
	if err != nil {
		t.Fatalf("NewManual() error = %v", err)
	}

	if !strings.HasPrefix(sub.ID, "manual-") {
		t.Errorf("Expected manual- prefix, got %s", sub.ID)
	}
	if sub.Name != "Gym" {
		t.Errorf("Expected name Gym, got %q", sub.Name)
	}
	if sub.DetectionMethod != domain.DetectionMethodManual || sub.Confidence != 100 {
		t.Errorf("Unexpected detection method %s / confidence %d", sub.DetectionMethod, sub.Confidence)
	}
	if sub.Amount.Currency != "AUD" {
		t.Errorf("Expected currency AUD, got %s", sub.Amount.Currency)
	}
	if sub.Billing.Frequency != domain.FrequencyFortnightly {
		t.Errorf("Expected FORTNIGHTLY, got %s", sub.Billing.Frequency)
	}
	if !sub.Billing.LastBillingDate.Equal(now) || !sub.Billing.NextBillingDate.Equal(next) {
		t.Errorf("Unexpected billing dates %+v", sub.Billing)
	}
	if sub.History == nil || len(sub.History) != 0 {
		t.Errorf("Expected empty non-nil history, got %v", sub.History)
	}
	if len(sub.Tags) != 2 || sub.Tags[1] != "Manual" {
		t.Errorf("Unexpected tags %v", sub.Tags)
	}
	if sub.Metadata == nil || sub.Metadata.Notes != "cancel after summer" {
		t.Errorf("Expected notes in metadata, got %+v", sub.Metadata)
	}

	other, err := NewManual(ManualInput{
		Name:            "Gym",
		Amount:          decimal.NewFromInt(25),
		Currency:        "AUD",
		Frequency:       domain.FrequencyFortnightly,
		NextBillingDate: next,
	}, now)
	if err != nil {
		t.Fatalf("NewManual() error = %v", err)
	}
	if other.ID == sub.ID {
		t.Error("Expected unique IDs for manual subscriptions")
	}
}

func TestManualInput_Validate(t *testing.T) {
	valid := ManualInput{
		Name:            "Gym",
		Amount:          decimal.NewFromInt(25),
		Currency:        "AUD",
		Frequency:       domain.FrequencyMonthly,
		NextBillingDate: daysAfter(1),
	}

	tests := []struct {
		name   string
		mutate func(*ManualInput)
	}{
		{"missing name", func(in *ManualInput) { in.Name = "  " }},
		{"zero amount", func(in *ManualInput) { in.Amount = decimal.Zero }},
		{"negative amount", func(in *ManualInput) { in.Amount = decimal.NewFromInt(-5) }},
		{"missing currency", func(in *ManualInput) { in.Currency = "" }},
		{"unknown frequency", func(in *ManualInput) { in.Frequency = "DAILY" }},
		{"missing next billing date", func(in *ManualInput) { in.NextBillingDate = time.Time{} }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid input, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if !errors.Is(err, ErrInvalidSubscription) {
				t.Errorf("Expected ErrInvalidSubscription, got %v", err)
			}
		})
	}
}
