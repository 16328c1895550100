package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GenerateFunc sends a prompt to a language model and returns its text reply.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiCategorizer asks a Gemini model to pick a category for each
// uncategorized subscription.
type GeminiCategorizer struct {
	generate GenerateFunc
	source   CategorySource
	log      zerolog.Logger
}

// NewGeminiCategorizer creates a categorizer backed by the Gemini API.
// Credentials come from the environment the way genai.NewClient resolves them.
// source may be nil, in which case DefaultCategories are offered.
func NewGeminiCategorizer(ctx context.Context, model string, source CategorySource, log zerolog.Logger) (*GeminiCategorizer, error) {
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCategorizer: create genai client: %w", err)
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return resp.Text(), nil
	}

	return NewGeminiCategorizerWithFunc(generate, source, log), nil
}

// NewGeminiCategorizerWithFunc creates a categorizer around an arbitrary
// model call. Tests use it to avoid the network.
func NewGeminiCategorizerWithFunc(generate GenerateFunc, source CategorySource, log zerolog.Logger) *GeminiCategorizer {
	return &GeminiCategorizer{
		generate: generate,
		source:   source,
		log:      log,
	}
}

// Categorize implements Categorizer. Answers naming a category outside the
// allowed list are recorded as Uncategorized.
func (g *GeminiCategorizer) Categorize(ctx context.Context, subs []domain.Subscription) error {
	var pending []int
	for i := range subs {
		if subs[i].Category == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	categories, err := g.categories(ctx)
	if err != nil {
		return fmt.Errorf("GeminiCategorizer.Categorize: loading categories: %w", err)
	}

	prompt := buildPrompt(subs, pending, categories)

	rawText, err := g.generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("GeminiCategorizer.Categorize: %w", err)
	}
	if rawText == "" {
		return fmt.Errorf("GeminiCategorizer.Categorize: empty response from model")
	}

	var answers map[string]string
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &answers); err != nil {
		return fmt.Errorf("GeminiCategorizer.Categorize: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	allowed := make(map[string]string, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(c)] = c
	}

	for _, i := range pending {
		answer, ok := answers[subs[i].ID]
		if !ok {
			g.log.Debug().Str("subscription_id", subs[i].ID).Msg("Model returned no category")
			continue
		}
		category, known := allowed[strings.ToLower(strings.TrimSpace(answer))]
		if !known {
			g.log.Warn().
				Str("subscription_id", subs[i].ID).
				Str("category", answer).
				Msg("Model returned unknown category")
			category = Uncategorized
		}
		subs[i].Category = category
	}

	return nil
}

func (g *GeminiCategorizer) categories(ctx context.Context) ([]string, error) {
	if g.source == nil {
		return DefaultCategories, nil
	}
	names, err := g.source.ActiveCategoryNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return DefaultCategories, nil
	}
	return names, nil
}

func buildPrompt(subs []domain.Subscription, pending []int, categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("You categorize recurring payments from a personal bank account.\n\n")
	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range sorted {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\nSubscriptions:\n")
	for _, i := range pending {
		sub := subs[i]
		fmt.Fprintf(&b, "  - id=%q merchant=%q raw=%q amount=%s %s frequency=%s\n",
			sub.ID, sub.Merchant.Normalized, sub.Merchant.RawText,
			sub.Amount.Current.StringFixed(2), sub.Amount.Currency, sub.Billing.Frequency)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. Category must be EXACTLY one of the names shown above.\n")
	fmt.Fprintf(&b, "2. If you are unsure, use %q.\n", Uncategorized)
	b.WriteString("\nReturn ONLY a raw JSON object mapping each id to its category.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
