package subscriptions

import (
	"sort"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// MerchantGroup holds every debit attributed to one canonical merchant key
// within a single detection run.
type MerchantGroup struct {
	Merchant     string
	Transactions []domain.Transaction
}

// GroupByMerchant partitions debits by canonical merchant key.
// Credits and refunds are dropped, so a refund never offsets a charge.
// Records without a timestamp are dropped as well. No ordering is
// guaranteed inside a group.
func GroupByMerchant(transactions []domain.Transaction) map[string]*MerchantGroup {
	groups := make(map[string]*MerchantGroup)

	for _, tx := range transactions {
		if !tx.Amount.IsDebit() {
			continue
		}
		if tx.CreatedAt.IsZero() {
			continue
		}

		merchant := NormalizeMerchant(tx.RawText, tx.Description)

		group, ok := groups[merchant]
		if !ok {
			group = &MerchantGroup{Merchant: merchant}
			groups[merchant] = group
		}
		group.Transactions = append(group.Transactions, tx)
	}

	return groups
}

// sortedMerchants returns the group keys in lexical order.
func sortedMerchants(groups map[string]*MerchantGroup) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
