package history

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// DateFormat is the portal's date layout.
const DateFormat = "01/02/2006"

// ErrNotTransaction is returned by ParseRow for rows that are not payments:
// summary labels, headings, rows without an amount or date.
var ErrNotTransaction = errors.New("not a transaction row")

var (
	amountPattern = regexp.MustCompile(`\$\s?([0-9,]+\.[0-9]{2})`)
	datePattern   = regexp.MustCompile(`\b[0-9]{2}/[0-9]{2}/[0-9]{4}\b`)
	summaryLabels = regexp.MustCompile(`(?i)Total Balance|Service Amount|Payment Plan|Recurring Amount|Down Payment|Payoff Amount`)
	failedPattern = regexp.MustCompile(`(?i)Failed|Declined|Void`)
	separators    = regexp.MustCompile(`\s*[\t\n|]\s*|,\s+`)
	statusWord    = regexp.MustCompile(`(?i)^(success|successful|paid|completed|failed|declined|void|voided)$`)
)

// ParseRow reads one scraped history row such as
//
//	01/15/2026, Denefits Fee + Upfront Payment, $119.90, Success
//
// Rows carrying a summary label, or lacking a $ amount or a date, return
// ErrNotTransaction. A row reading Failed, Declined or Void is returned with
// Success false.
func ParseRow(text string) (model.TransactionRecord, error) {
	if summaryLabels.MatchString(text) {
		return model.TransactionRecord{}, ErrNotTransaction
	}
	am := amountPattern.FindStringSubmatch(text)
	dm := datePattern.FindString(text)
	if am == nil || dm == "" {
		return model.TransactionRecord{}, ErrNotTransaction
	}

	date, err := time.Parse(DateFormat, dm)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("parsing date %q: %w", dm, err)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(am[1], ",", ""))
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", am[0], err)
	}

	return model.TransactionRecord{
		Date:        date,
		Amount:      amount,
		Description: describe(text),
		Raw:         text,
		Kind:        Classify(text),
		Success:     !failedPattern.MatchString(text),
	}, nil
}

// describe strips the date, amount and status from a row, leaving the label.
func describe(text string) string {
	s := amountPattern.ReplaceAllString(text, "\t")
	s = datePattern.ReplaceAllString(s, "\t")

	var parts []string
	for _, p := range separators.Split(s, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" || statusWord.MatchString(p) {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
