package subscriptions

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/logger"
)

func TestDetect_TwoMerchantsOrderedByNextBilling(t *testing.T) {
	credit := debit("refund", "NETFLIX.COM", "Netflix", "16.99", daysAfter(20))
	credit.Amount.Value = credit.Amount.Value.Neg()
	credit.Amount.ValueInBaseUnits = -credit.Amount.ValueInBaseUnits

	txs := []domain.Transaction{
		debit("n1", "NETFLIX.COM SYDNEY", "Netflix", "16.99", daysAfter(9)),
		debit("g1", "", "Gym", "25.00", daysAfter(0)),
		debit("n2", "NETFLIX.COM SYDNEY", "Netflix", "16.99", daysAfter(39)),
		debit("g2", "", "Gym", "25.00", daysAfter(14)),
		debit("c1", "", "Cafe Nervosa", "4.50", daysAfter(3)),
		debit("g3", "", "Gym", "25.00", daysAfter(28)),
		credit,
	}

	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	subs := NewDetector(DefaultHeuristics(), 2).Detect(ctx, txs)
	if len(subs) != 2 {
		t.Fatalf("Expected 2 subscriptions, got %d", len(subs))
	}

	// Gym: last charge day 28, next day 42. Netflix: last day 39, next day 69.
	if subs[0].Name != "Gym" || subs[1].Name != "Netflix" {
		t.Errorf("Expected [Gym Netflix], got [%s %s]", subs[0].Name, subs[1].Name)
	}
	if subs[0].Billing.Frequency != domain.FrequencyFortnightly {
		t.Errorf("Expected Gym to be FORTNIGHTLY, got %s", subs[0].Billing.Frequency)
	}
	if subs[1].Billing.Frequency != domain.FrequencyMonthly {
		t.Errorf("Expected Netflix to be MONTHLY, got %s", subs[1].Billing.Frequency)
	}
	if !subs[0].Billing.NextBillingDate.Equal(daysAfter(42)) {
		t.Errorf("Expected Gym next billing %v, got %v", daysAfter(42), subs[0].Billing.NextBillingDate)
	}
	if len(subs[1].History) != 2 {
		t.Errorf("Expected refund to be excluded from Netflix history, got %d entries", len(subs[1].History))
	}
	if subs[1].ID != "sub-netflix" {
		t.Errorf("Expected ID sub-netflix, got %s", subs[1].ID)
	}

	if buf.Len() == 0 {
		t.Error("Expected detection to log through the context logger")
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	subs := Detect(context.Background(), nil)
	if subs == nil {
		t.Fatal("Expected non-nil empty slice")
	}
	if len(subs) != 0 {
		t.Errorf("Expected no subscriptions, got %d", len(subs))
	}
}

func TestDetect_OnlyCredits(t *testing.T) {
	tx := debit("t1", "", "Salary", "1000.00", daysAfter(0))
	tx.Amount.Value = tx.Amount.Value.Neg()
	tx2 := debit("t2", "", "Salary", "1000.00", daysAfter(14))
	tx2.Amount.Value = tx2.Amount.Value.Neg()

	subs := Detect(context.Background(), []domain.Transaction{tx, tx2})
	if len(subs) != 0 {
		t.Errorf("Expected credits to be ignored, got %d subscriptions", len(subs))
	}
}

func TestDetect_TiesBrokenByID(t *testing.T) {
	txs := []domain.Transaction{
		debit("b1", "", "Beta", "5.00", daysAfter(0)),
		debit("b2", "", "Beta", "5.00", daysAfter(30)),
		debit("a1", "", "Alpha", "7.00", daysAfter(0)),
		debit("a2", "", "Alpha", "7.00", daysAfter(30)),
	}

	for i := 0; i < 5; i++ {
		subs := Detect(context.Background(), txs)
		if len(subs) != 2 {
			t.Fatalf("Expected 2 subscriptions, got %d", len(subs))
		}
		if subs[0].ID != "sub-alpha" || subs[1].ID != "sub-beta" {
			t.Fatalf("Expected [sub-alpha sub-beta], got [%s %s]", subs[0].ID, subs[1].ID)
		}
	}
}

func TestGroupByMerchant(t *testing.T) {
	credit := debit("r1", "", "Netflix", "16.99", daysAfter(1))
	credit.Amount.Value = credit.Amount.Value.Neg()
	undated := debit("u1", "NETFLIX.COM", "Netflix", "16.99", daysAfter(0))
	undated.CreatedAt = time.Time{}

	groups := GroupByMerchant([]domain.Transaction{
		debit("n1", "NETFLIX.COM", "Netflix", "16.99", daysAfter(0)),
		debit("n2", "", "NETFLIX.COM", "16.99", daysAfter(30)),
		debit("s1", "SPOTIFY AB", "Spotify", "11.99", daysAfter(2)),
		credit,
		undated,
	})

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if got := len(groups["NETFLIX"].Transactions); got != 2 {
		t.Errorf("Expected 2 NETFLIX transactions, got %d", got)
	}
	if got := len(groups["SPOTIFY"].Transactions); got != 1 {
		t.Errorf("Expected 1 SPOTIFY transaction, got %d", got)
	}
	if groups["NETFLIX"].Merchant != "NETFLIX" {
		t.Errorf("Expected group merchant NETFLIX, got %s", groups["NETFLIX"].Merchant)
	}
}
