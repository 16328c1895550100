package subscriptions

import "testing"

func strPtr(s string) *string {
	return &s
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name        string
		rawText     *string
		description string
		want        string
	}{
		{
			name:    "known merchant variation",
			rawText: strPtr("Spotify AB Stockholm"),
			want:    "SPOTIFY",
		},
		{
			name:    "lookup ignores location suffix",
			rawText: strPtr("NETFLIX.COM SYDNEY"),
			want:    "NETFLIX",
		},
		{
			name:    "aws matched on full name",
			rawText: strPtr("AMAZON WEB SERVICES AWS.AMAZON.CO"),
			want:    "AWS",
		},
		{
			name:        "nil raw text falls back to description",
			rawText:     nil,
			description: "Anytime Fitness",
			want:        "ANYTIME FITNESS",
		},
		{
			name:        "empty raw text falls back to description",
			rawText:     strPtr(""),
			description: "Cafe Nervosa",
			want:        "CAFE NERVOSA",
		},
		{
			name:    "square prefix removed",
			rawText: strPtr("SQ *BLUE BOTTLE COFFEE"),
			want:    "BLUE BOTTLE COFFEE",
		},
		{
			name:    "reference code removed",
			rawText: strPtr("ACME WIDGETS 12345678"),
			want:    "ACME WIDGETS",
		},
		{
			name:    "suburb and state removed",
			rawText: strPtr("CAFE MOCHA SURRY HILLS NSW"),
			want:    "CAFE",
		},
		{
			name:    "city suffix removed",
			rawText: strPtr("BOOK CLUB MELBOURNE"),
			want:    "BOOK CLUB",
		},
		{
			name:    "country suffix removed",
			rawText: strPtr("KINDLE STORE AU"),
			want:    "KINDLE STORE",
		},
		{
			name:    "punctuation stripped",
			rawText: strPtr("  o'malley's pub  "),
			want:    "OMALLEYS PUB",
		},
		{
			name:    "capped at three tokens",
			rawText: strPtr("THE GOOD COFFEE COMPANY LTD"),
			want:    "THE GOOD COFFEE",
		},
		{
			name:    "degenerate input",
			rawText: strPtr("***"),
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMerchant(tt.rawText, tt.description)
			if got != tt.want {
				t.Errorf("NormalizeMerchant() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeMerchant_Idempotent(t *testing.T) {
	inputs := []string{
		"SPOTIFY AB STOCKHOLM",
		"NETFLIX HOLDINGS",
		"SQ *BLUE BOTTLE COFFEE",
		"ADOBE CREATIVE CLOUD HOLDINGS",
		"THE GOOD COFFEE COMPANY LTD",
		"UBER EATS TRIP 8XK2",
		"Gym Membership",
	}

	for _, in := range inputs {
		once := NormalizeMerchant(strPtr(in), "")
		twice := NormalizeMerchant(strPtr(once), "")
		if once != twice {
			t.Errorf("NormalizeMerchant not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
