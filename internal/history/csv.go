package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cleared-dev/payoffcheck/internal/extract"
	"github.com/cleared-dev/payoffcheck/internal/model"
)

// CSVParser reads history exported as CSV. Columns are found by header name
// (case-insensitive): Date and Amount are required, plus Description or
// Full Text. An optional Status column decides success; otherwise the row
// text does.
type CSVParser struct{}

const (
	colDate        = "date"
	colAmount      = "amount"
	colDescription = "description"
	colFullText    = "full text"
	colStatus      = "status"
)

// Format returns the parser name.
func (p *CSVParser) Format() string { return "csv" }

// Parse returns the transaction rows of r in file order.
func (p *CSVParser) Parse(r io.Reader) ([]model.TransactionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, req := range []string{colDate, colAmount} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("history CSV has no %q column", req)
		}
	}
	_, hasDesc := cols[colDescription]
	_, hasText := cols[colFullText]
	if !hasDesc && !hasText {
		return nil, errors.New("history CSV needs a description or full text column")
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var recs []model.TransactionRecord
	for i, row := range records[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		rec, skip, err := parseCSVRow(row, get)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if !skip {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func parseCSVRow(row []string, get func([]string, string) string) (model.TransactionRecord, bool, error) {
	desc := get(row, colDescription)
	raw := get(row, colFullText)
	if raw == "" {
		raw = strings.Join(row, ", ")
	}
	if desc == "" {
		desc = describe(raw)
	}
	if summaryLabels.MatchString(desc) {
		return model.TransactionRecord{}, true, nil
	}

	dateText := get(row, colDate)
	date, err := time.Parse(DateFormat, dateText)
	if err != nil {
		return model.TransactionRecord{}, false, fmt.Errorf("parsing date %q: %w", dateText, err)
	}
	amountText := get(row, colAmount)
	amount, err := extract.Amount(amountText)
	if err != nil {
		return model.TransactionRecord{}, false, fmt.Errorf("parsing amount %q: %w", amountText, err)
	}

	status := get(row, colStatus)
	if status == "" {
		status = raw
	}

	return model.TransactionRecord{
		Date:        date,
		Amount:      amount,
		Description: desc,
		Raw:         raw,
		Kind:        Classify(desc + " " + raw),
		Success:     !failedPattern.MatchString(status),
	}, false, nil
}
