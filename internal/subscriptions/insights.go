package subscriptions

import (
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// CalendarDateLayout keys the billing calendar.
const CalendarDateLayout = "2006-01-02"

var (
	weeksPerMonth      = decimal.RequireFromString("4.33")
	fortnightsPerMonth = decimal.RequireFromString("2.16")
)

// MonthlyCost normalizes a charge of the given cadence to a monthly amount.
func MonthlyCost(amount decimal.Decimal, frequency domain.Frequency) decimal.Decimal {
	switch frequency {
	case domain.FrequencyWeekly:
		return amount.Mul(weeksPerMonth)
	case domain.FrequencyFortnightly:
		return amount.Mul(fortnightsPerMonth)
	case domain.FrequencyQuarterly:
		return amount.Div(decimal.NewFromInt(3))
	case domain.FrequencyBiannual:
		return amount.Div(decimal.NewFromInt(6))
	case domain.FrequencyAnnual:
		return amount.Div(decimal.NewFromInt(12))
	default:
		return amount
	}
}

// Summary aggregates the active subscriptions. Totals are kept per currency
// and rounded to cents.
type Summary struct {
	MonthlyTotals    map[string]decimal.Decimal `json:"monthlyTotals"`
	MonthlyYourShare map[string]decimal.Decimal `json:"monthlyYourShare"`
	ActiveCount      int                        `json:"activeCount"`
	SharedCount      int                        `json:"sharedCount"`
	PriceChangeCount int                        `json:"priceChangeCount"`
}

// Summarize computes spend totals over subscriptions with ACTIVE status.
func Summarize(subs []domain.Subscription) Summary {
	summary := Summary{
		MonthlyTotals:    make(map[string]decimal.Decimal),
		MonthlyYourShare: make(map[string]decimal.Decimal),
	}

	for _, sub := range subs {
		if sub.Status != domain.SubscriptionStatusActive {
			continue
		}
		summary.ActiveCount++

		currency := sub.Amount.Currency
		monthly := MonthlyCost(sub.Amount.Current, sub.Billing.Frequency)
		summary.MonthlyTotals[currency] = summary.MonthlyTotals[currency].Add(monthly)

		share := monthly
		if sub.Sharing != nil && sub.Sharing.IsShared {
			summary.SharedCount++
			share = MonthlyCost(sub.Sharing.YourShare, sub.Billing.Frequency)
		}
		summary.MonthlyYourShare[currency] = summary.MonthlyYourShare[currency].Add(share)

		if sub.PriceChange != nil {
			summary.PriceChangeCount++
		}
	}

	for currency, total := range summary.MonthlyTotals {
		summary.MonthlyTotals[currency] = total.Round(2)
	}
	for currency, total := range summary.MonthlyYourShare {
		summary.MonthlyYourShare[currency] = total.Round(2)
	}

	return summary
}

// BillingCalendar buckets subscriptions whose next billing date falls in the
// given month, keyed by calendar day. Only the next billing date is placed;
// later cycles are not projected. A nil location means UTC.
func BillingCalendar(subs []domain.Subscription, year int, month time.Month, loc *time.Location) map[string][]domain.Subscription {
	if loc == nil {
		loc = time.UTC
	}

	days := make(map[string][]domain.Subscription)
	for _, sub := range subs {
		next := sub.Billing.NextBillingDate.In(loc)
		if next.Year() != year || next.Month() != month {
			continue
		}
		key := next.Format(CalendarDateLayout)
		days[key] = append(days[key], sub)
	}
	return days
}
