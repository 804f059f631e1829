// Package extract turns on-screen field text into numbers.
//
// Parsing is lenient: unparsable text never fails a computation. The value
// falls back to a default and a *ParseError says so.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseError reports that a default was substituted for unparsable text.
type ParseError struct {
	Text    string
	Default decimal.Decimal
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable amount %q, using %s", e.Text, e.Default.String())
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)

var one = decimal.NewFromInt(1)

// Amount parses on-screen currency or number text.
//
// "$", "," and whitespace are removed first. Text containing "*" is the product
// of its first two parts, text containing "+" their sum; anything else is a
// single number. Each part is read from its leading numeric prefix, so "16.99%"
// is 16.99. Unparsable parts default to 0, except the multiplier which defaults
// to 1. The returned value is always usable; err is a *ParseError when any
// default was applied.
func Amount(text string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	var failed bool
	part := func(s string, def decimal.Decimal) decimal.Decimal {
		d, ok := leading(s)
		if !ok {
			failed = true
			return def
		}
		return d
	}

	var v decimal.Decimal
	switch {
	case strings.Contains(clean, "*"):
		parts := strings.Split(clean, "*")
		v = part(parts[0], decimal.Zero).Mul(part(parts[1], one))
	case strings.Contains(clean, "+"):
		parts := strings.Split(clean, "+")
		v = part(parts[0], decimal.Zero).Add(part(parts[1], decimal.Zero))
	default:
		v = part(clean, decimal.Zero)
	}

	if failed {
		return v, &ParseError{Text: text, Default: v}
	}
	return v, nil
}

// Count parses text as Amount does and truncates the result to an int.
func Count(text string) (int, error) {
	v, err := Amount(text)
	return int(v.IntPart()), err
}

func leading(s string) (decimal.Decimal, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	m = strings.TrimPrefix(m, "+")
	if strings.HasPrefix(m, ".") {
		m = "0" + m
	} else if strings.HasPrefix(m, "-.") {
		m = "-0" + m[1:]
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
