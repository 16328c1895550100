package feed

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

const demoCurrency = "AUD"

// demoSeries is a run of charges for one merchant, spaced evenly back from now.
type demoSeries struct {
	description string
	amount      func(i int, rng *rand.Rand) decimal.Decimal
	count       int
	everyDays   int
	offsetDays  int
}

func fixed(amount string) func(int, *rand.Rand) decimal.Decimal {
	d := decimal.RequireFromString(amount)
	return func(int, *rand.Rand) decimal.Decimal { return d }
}

// stepped charges newer for the first `newer` charges, older after that.
func stepped(newer int, newAmount, oldAmount string) func(int, *rand.Rand) decimal.Decimal {
	n, o := decimal.RequireFromString(newAmount), decimal.RequireFromString(oldAmount)
	return func(i int, _ *rand.Rand) decimal.Decimal {
		if i < newer {
			return n
		}
		return o
	}
}

var demoPortfolio = []demoSeries{
	{"Netflix", stepped(2, "18.99", "16.99"), 6, 30, 5},
	{"Spotify", fixed("12.99"), 6, 30, 15},
	{"Adobe Creative Cloud", stepped(2, "54.99", "49.99"), 6, 30, 2},
	{"AWS Web Services", func(_ int, rng *rand.Rand) decimal.Decimal {
		return decimal.NewFromFloat(30 + rng.Float64()*2).Round(2)
	}, 6, 30, 10},
	{"Anytime Fitness", fixed("25.00"), 12, 14, 1},
}

const (
	demoCafe       = "Cafe Nervosa"
	demoCafeVisits = 20
	demoCafeWindow = 90
)

// GenerateDemo returns a realistic feed of card debits ending at now,
// newest first. It mixes monthly subscriptions (two with a price rise),
// a variable monthly bill, a fortnightly membership and irregular coffee
// purchases that must not be detected.
func GenerateDemo(now time.Time, rng *rand.Rand) []domain.Transaction {
	var txs []domain.Transaction
	seq := 0
	add := func(description string, amount decimal.Decimal, at time.Time) {
		seq++
		rawText := strings.ToUpper(description) + " HOLDINGS"
		value := amount.Neg()
		txs = append(txs, domain.Transaction{
			ID:          fmt.Sprintf("demo-%03d", seq),
			RawText:     &rawText,
			Description: description,
			Amount: domain.Money{
				CurrencyCode:     demoCurrency,
				Value:            value,
				ValueInBaseUnits: value.Shift(2).IntPart(),
			},
			CreatedAt: at,
			Status:    domain.TransactionStatusSettled,
		})
	}

	for _, s := range demoPortfolio {
		for i := 0; i < s.count; i++ {
			add(s.description, s.amount(i, rng), now.AddDate(0, 0, -(i*s.everyDays + s.offsetDays)))
		}
	}

	cafe := decimal.RequireFromString("4.50")
	for i := 0; i < demoCafeVisits; i++ {
		add(demoCafe, cafe, now.AddDate(0, 0, -rng.Intn(demoCafeWindow)))
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs
}
