// Package categorize assigns spending categories to detected subscriptions.
package categorize

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// Uncategorized is used when no category could be determined.
const Uncategorized = "Uncategorized"

// DefaultCategories is the taxonomy used when no category source is configured.
var DefaultCategories = []string{
	"Entertainment",
	"Music",
	"Software",
	"Cloud Services",
	"Health & Fitness",
	"Shopping",
	"Food & Drink",
	"News & Reading",
	"Utilities",
	Uncategorized,
}

// Categorizer fills in Subscription.Category for entries that have none.
// Entries that already carry a category are left untouched.
type Categorizer interface {
	Categorize(ctx context.Context, subs []domain.Subscription) error
}

// CategorySource lists the categories a model may choose from.
type CategorySource interface {
	ActiveCategoryNames(ctx context.Context) ([]string, error)
}

// Chain runs categorizers in order; later ones only see entries still uncategorized.
type Chain []Categorizer

// Categorize implements Categorizer.
func (c Chain) Categorize(ctx context.Context, subs []domain.Subscription) error {
	for i, categorizer := range c {
		if !hasUncategorized(subs) {
			return nil
		}
		if err := categorizer.Categorize(ctx, subs); err != nil {
			return fmt.Errorf("Chain.Categorize: categorizer %d: %w", i+1, err)
		}
	}
	return nil
}

func hasUncategorized(subs []domain.Subscription) bool {
	for _, sub := range subs {
		if sub.Category == "" {
			return true
		}
	}
	return false
}

// KeywordCategorizer maps merchant keywords to categories without any
// network call.
type KeywordCategorizer struct {
	rules []keywordRule
}

type keywordRule struct {
	keyword  string
	category string
}

// defaultKeywordRules are checked in order against the normalized merchant.
var defaultKeywordRules = []keywordRule{
	{"NETFLIX", "Entertainment"},
	{"DISNEY", "Entertainment"},
	{"BINGE", "Entertainment"},
	{"STAN", "Entertainment"},
	{"YOUTUBE", "Entertainment"},
	{"SPOTIFY", "Music"},
	{"AUDIBLE", "News & Reading"},
	{"PATREON", "Entertainment"},
	{"ADOBE", "Software"},
	{"APPLE", "Software"},
	{"GOOGLE", "Software"},
	{"LINKEDIN", "Software"},
	{"AWS", "Cloud Services"},
	{"AMAZON", "Shopping"},
	{"UBER EATS", "Food & Drink"},
	{"FITNESS", "Health & Fitness"},
	{"GYM", "Health & Fitness"},
}

// NewKeywordCategorizer creates a categorizer with the built-in keyword table.
func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{rules: defaultKeywordRules}
}

// Lookup returns the category for a normalized merchant, or "" when no keyword matches.
func (k *KeywordCategorizer) Lookup(merchant string) string {
	merchant = strings.ToUpper(merchant)
	for _, r := range k.rules {
		if strings.Contains(merchant, r.keyword) {
			return r.category
		}
	}
	return ""
}

// Categorize implements Categorizer.
func (k *KeywordCategorizer) Categorize(ctx context.Context, subs []domain.Subscription) error {
	for i := range subs {
		if subs[i].Category != "" {
			continue
		}
		subs[i].Category = k.Lookup(subs[i].Merchant.Normalized)
	}
	return nil
}
