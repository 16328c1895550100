package subscriptions

import (
	"math"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// FrequencyWindow accepts an average interval within ToleranceDays of
// TargetDays.
type FrequencyWindow struct {
	Frequency     domain.Frequency
	TargetDays    float64
	ToleranceDays float64
}

// Matches reports whether avgDays falls inside the window, bounds included.
func (w FrequencyWindow) Matches(avgDays float64) bool {
	return math.Abs(avgDays-w.TargetDays) <= w.ToleranceDays
}

// Heuristics holds every tunable constant of the recurrence analysis.
type Heuristics struct {
	// MinTransactions is the smallest group that can establish a cadence.
	MinTransactions int

	// Windows are evaluated in order; the first match wins.
	Windows []FrequencyWindow

	// MaxAmountDeviation is the relative deviation from the latest charge
	// every charge must stay below.
	MaxAmountDeviation decimal.Decimal

	// ConsistencyExempt lists cadences accepted even when amounts deviate.
	ConsistencyExempt []domain.Frequency

	// PriceChangeMinAbs and PriceChangeMinRel must both be exceeded for a
	// difference between the latest two charges to count as a price change.
	PriceChangeMinAbs decimal.Decimal
	PriceChangeMinRel decimal.Decimal

	// SharedPlanThresholds marks a merchant as shared when its latest
	// charge is above the threshold.
	SharedPlanThresholds map[string]decimal.Decimal
	SharedKeyword        string
	SharedWith           []string

	ConfidenceConsistent   int
	ConfidenceInconsistent int
}

// DefaultHeuristics returns the production thresholds.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		MinTransactions: 2,
		Windows: []FrequencyWindow{
			{domain.FrequencyWeekly, 7, 2},
			{domain.FrequencyFortnightly, 14, 3},
			{domain.FrequencyMonthly, 30, 5},
			{domain.FrequencyQuarterly, 91, 10},
			{domain.FrequencyBiannual, 182, 15},
			{domain.FrequencyAnnual, 365, 20},
		},
		MaxAmountDeviation: decimal.RequireFromString("0.10"),
		ConsistencyExempt:  []domain.Frequency{domain.FrequencyAnnual},
		PriceChangeMinAbs:  decimal.RequireFromString("0.50"),
		PriceChangeMinRel:  decimal.RequireFromString("0.02"),
		SharedPlanThresholds: map[string]decimal.Decimal{
			"SPOTIFY": decimal.NewFromInt(15),
			"NETFLIX": decimal.NewFromInt(22),
		},
		SharedKeyword:          "FAMILY",
		SharedWith:             []string{"Partner"},
		ConfidenceConsistent:   90,
		ConfidenceInconsistent: 70,
	}
}

// classify returns the first window containing avgDays.
func (h Heuristics) classify(avgDays float64) (domain.Frequency, bool) {
	for _, w := range h.Windows {
		if w.Matches(avgDays) {
			return w.Frequency, true
		}
	}
	return "", false
}

func (h Heuristics) exemptFromConsistency(f domain.Frequency) bool {
	for _, e := range h.ConsistencyExempt {
		if e == f {
			return true
		}
	}
	return false
}
