package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		wantErr bool
	}{
		{"$1,234.56", "1234.56", false},
		{" $ 99.00 ", "99", false},
		{"25*2", "50", false},
		{"$25 * 2", "50", false},
		{"138.35+4.15", "142.5", false},
		{"$138.35 + $4.15", "142.5", false},
		{"16.99%", "16.99", false},
		{"6 payments", "6", false},
		{"-12.5", "-12.5", false},
		{".5", "0.5", false},
		{"1e3", "1000", false},
		{"2*3*4", "6", false},
		{"2*3+1", "6", false},
		{"", "0", true},
		{"N/A", "0", true},
		{"$", "0", true},
		{"25*x", "25", true},
		{"x*3", "0", true},
		{"x+4.15", "4.15", true},
		{"4.15+", "4.15", true},
	}
	for _, tt := range tests {
		got, err := Amount(tt.text)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "Amount(%q) = %s, want %s", tt.text, got, tt.want)
		if tt.wantErr {
			var pe *ParseError
			require.ErrorAs(t, err, &pe, "Amount(%q)", tt.text)
			assert.Equal(t, tt.text, pe.Text)
			assert.True(t, pe.Default.Equal(got))
		} else {
			assert.NoError(t, err, "Amount(%q)", tt.text)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"10", 10},
		{"6 of 10", 6},
		{"12.9", 12},
		{"", 0},
	}
	for _, tt := range tests {
		got, _ := Count(tt.text)
		assert.Equal(t, tt.want, got, "Count(%q)", tt.text)
	}
}

func TestAmountCurrencyFormattingProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 1_000_000_00).Draw(t, "cents")
		want := decimal.New(cents, -2)

		text := "$" + formatThousands(want.StringFixed(2))
		got, err := Amount(text)
		if err != nil {
			t.Fatalf("Amount(%q): %v", text, err)
		}
		if !got.Equal(want) {
			t.Fatalf("Amount(%q) = %s, want %s", text, got, want)
		}
	})
}

func formatThousands(s string) string {
	intPart, frac := s, ""
	for i := range s {
		if s[i] == '.' {
			intPart, frac = s[:i], s[i:]
			break
		}
	}
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	return string(out) + frac
}
