package subscriptions

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	autoDetectedTags = []string{"Subscription", "Auto-Detected"}
	whitespace       = regexp.MustCompile(`\s`)
)

// Analyzer decides whether one merchant group is a recurring subscription.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	h Heuristics
}

// minGroupSize is the floor for MinTransactions: an interval needs two charges.
const minGroupSize = 2

// NewAnalyzer creates an Analyzer with the given thresholds. MinTransactions
// below two is raised to two.
func NewAnalyzer(h Heuristics) *Analyzer {
	if h.MinTransactions < minGroupSize {
		h.MinTransactions = minGroupSize
	}
	return &Analyzer{h: h}
}

// Analyze returns the subscription inferred from group, or nil when the
// group fails the cardinality, cadence or consistency gate.
// The group's transaction slice is not modified.
func (a *Analyzer) Analyze(group *MerchantGroup) *domain.Subscription {
	if group == nil || len(group.Transactions) < a.h.MinTransactions {
		return nil
	}

	// Newest first.
	txs := make([]domain.Transaction, len(group.Transactions))
	copy(txs, group.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})

	avgInterval := averageIntervalDays(txs)
	frequency, ok := a.h.classify(avgInterval)
	if !ok {
		return nil
	}

	amounts := make([]decimal.Decimal, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount.Value.Abs()
	}
	latest := amounts[0]

	consistent := a.isConsistent(amounts)
	if !consistent && !a.h.exemptFromConsistency(frequency) {
		return nil
	}

	newest := txs[0]
	priceChange := a.detectPriceChange(amounts, newest.CreatedAt)
	sharing := a.inferSharing(group.Merchant, newest.Description, latest)

	cycleDays := int(math.Round(avgInterval))
	lastDate := newest.CreatedAt
	nextDate := lastDate.AddDate(0, 0, cycleDays)

	confidence := a.h.ConfidenceInconsistent
	if consistent || priceChange != nil {
		confidence = a.h.ConfidenceConsistent
	}

	rawText := ""
	if newest.RawText != nil {
		rawText = *newest.RawText
	}

	history := make([]domain.HistoryEntry, len(txs))
	for i, tx := range txs {
		history[i] = domain.HistoryEntry{
			TransactionID: tx.ID,
			Date:          tx.CreatedAt,
			Amount:        amounts[i],
			Status:        tx.Status,
		}
	}

	tags := make([]string, len(autoDetectedTags))
	copy(tags, autoDetectedTags)

	return &domain.Subscription{
		ID:   SubscriptionID(group.Merchant),
		Name: newest.Description,
		Merchant: domain.MerchantInfo{
			RawText:    rawText,
			Normalized: group.Merchant,
		},
		Status:          domain.SubscriptionStatusActive,
		DetectionMethod: domain.DetectionMethodAuto,
		Confidence:      clampConfidence(confidence),
		Amount: domain.AmountInfo{
			Current:  latest,
			Currency: newest.Amount.CurrencyCode,
		},
		PriceChange: priceChange,
		Sharing:     sharing,
		Billing: domain.Billing{
			Frequency:       frequency,
			CycleDays:       cycleDays,
			NextBillingDate: nextDate,
			LastBillingDate: lastDate,
		},
		History: history,
		Tags:    tags,
	}
}

// SubscriptionID derives the subscription identifier from a merchant key.
func SubscriptionID(merchant string) string {
	return "sub-" + whitespace.ReplaceAllString(strings.ToLower(merchant), "-")
}

// averageIntervalDays is the mean of whole-day gaps between adjacent
// transactions sorted newest first.
func averageIntervalDays(txs []domain.Transaction) float64 {
	var total int
	for i := 0; i < len(txs)-1; i++ {
		total += daysBetween(txs[i].CreatedAt, txs[i+1].CreatedAt)
	}
	return float64(total) / float64(len(txs)-1)
}

// daysBetween counts full 24-hour periods from earlier to later.
func daysBetween(later, earlier time.Time) int {
	return int(later.Sub(earlier) / (24 * time.Hour))
}

// isConsistent reports whether every amount deviates from the latest one by
// less than MaxAmountDeviation. A zero latest amount is never consistent.
func (a *Analyzer) isConsistent(amounts []decimal.Decimal) bool {
	latest := amounts[0]
	if latest.IsZero() {
		return false
	}
	for _, amt := range amounts {
		deviation := amt.Sub(latest).Abs().Div(latest)
		if !deviation.LessThan(a.h.MaxAmountDeviation) {
			return false
		}
	}
	return true
}

// detectPriceChange compares the latest two charges only.
func (a *Analyzer) detectPriceChange(amounts []decimal.Decimal, date time.Time) *domain.PriceChange {
	if len(amounts) < 2 {
		return nil
	}
	latest, previous := amounts[0], amounts[1]
	if previous.IsZero() {
		return nil
	}

	diff := latest.Sub(previous)
	if !diff.Abs().GreaterThan(a.h.PriceChangeMinAbs) {
		return nil
	}
	if !diff.Abs().Div(previous).GreaterThan(a.h.PriceChangeMinRel) {
		return nil
	}

	return &domain.PriceChange{
		Amount:     diff,
		Percentage: diff.Div(previous).Mul(decimal.NewFromInt(100)).InexactFloat64(),
		Date:       date,
	}
}

// inferSharing flags family plans by keyword or by a price above the
// merchant's single-user plan. The split is an even share with the
// configured co-sharers.
func (a *Analyzer) inferSharing(merchant, description string, latest decimal.Decimal) *domain.Sharing {
	shared := a.h.SharedKeyword != "" && strings.Contains(strings.ToUpper(description), a.h.SharedKeyword)
	if threshold, ok := a.h.SharedPlanThresholds[merchant]; ok && latest.GreaterThan(threshold) {
		shared = true
	}
	if !shared {
		return nil
	}

	sharedWith := make([]string, len(a.h.SharedWith))
	copy(sharedWith, a.h.SharedWith)
	parts := decimal.NewFromInt(int64(len(sharedWith) + 1))

	return &domain.Sharing{
		IsShared:   true,
		SharedWith: sharedWith,
		YourShare:  latest.Div(parts),
		TotalCost:  latest,
	}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
