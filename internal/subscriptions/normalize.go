package subscriptions

import (
	"regexp"
	"strings"
)

// merchantAlias maps a canonical merchant name to the raw-text variants
// that identify it.
type merchantAlias struct {
	Canonical  string
	Variations []string
}

// knownMerchants is evaluated top to bottom; the first variation found in
// the merchant text wins.
var knownMerchants = []merchantAlias{
	{"SPOTIFY", []string{"SPOTIFY AB", "SPOTIFY AUS"}},
	{"NETFLIX", []string{"NETFLIX.COM"}},
	{"APPLE", []string{"APPLE.COM/BILL", "APPLE SERVICES"}},
	{"GOOGLE", []string{"GOOGLE PLAY", "YOUTUBE"}},
	{"AMAZON", []string{"AMAZON PRIME", "AMZN"}},
	{"ADOBE", []string{"ADOBE SYSTEMS"}},
	{"AWS", []string{"AMAZON WEB SERVICES"}},
	{"PATREON", []string{"PATREON.COM"}},
	{"DISNEY", []string{"DISNEY PLUS", "DISNEY+"}},
	{"BINGE", []string{"BINGE TV"}},
	{"STAN", []string{"STAN ENTERTAINMENT"}},
	{"AUDIBLE", []string{"AUDIBLE.COM"}},
	{"UBER EATS", []string{"UBER EATS TRIP"}},
	{"LINKEDIN", []string{"LI.COM"}},
}

// cleanupRule strips one kind of noise from merchant text.
type cleanupRule struct {
	re          *regexp.Regexp
	replacement string
}

// cleanupRules are applied in order, each to the output of the previous one.
var cleanupRules = []cleanupRule{
	// Square reader prefix
	{regexp.MustCompile(`^SQ \*`), ""},
	// Curve prefix
	{regexp.MustCompile(`^CRV\* `), ""},
	{regexp.MustCompile(`\*$`), ""},
	// Reference codes appended by the acquirer
	{regexp.MustCompile(`\s+[A-Z0-9]{8,}$`), ""},
	// Suburb followed by an Australian state
	{regexp.MustCompile(`\s+[\w\s]*\s(NSW|VIC|QLD|SA|WA|TAS|NT|ACT)$`), ""},
	{regexp.MustCompile(`\s+(AU|AUS|AUST)$`), ""},
	{regexp.MustCompile(`\s+(SYDNEY|MELBOURNE|BRISBANE|PERTH|ADELAIDE|CANBERRA|HOBART|DARWIN)$`), ""},
}

var nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9\s]`)

// maxMerchantTokens caps how many words of an unknown merchant are kept.
const maxMerchantTokens = 3

// NormalizeMerchant maps raw merchant text to a canonical merchant key.
// The raw text is used when present and non-empty, the description otherwise.
// The result may be empty for degenerate input.
func NormalizeMerchant(rawText *string, description string) string {
	source := description
	if rawText != nil && *rawText != "" {
		source = *rawText
	}
	text := strings.TrimSpace(strings.ToUpper(source))

	for _, m := range knownMerchants {
		for _, v := range m.Variations {
			if strings.Contains(text, v) {
				return m.Canonical
			}
		}
	}

	for _, rule := range cleanupRules {
		text = rule.re.ReplaceAllString(text, rule.replacement)
	}

	text = strings.TrimSpace(nonAlphanumeric.ReplaceAllString(text, ""))

	parts := strings.Fields(text)
	if len(parts) > maxMerchantTokens {
		return strings.Join(parts[:maxMerchantTokens], " ")
	}

	return text
}
