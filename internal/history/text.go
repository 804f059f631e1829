package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// TextParser reads scraped history with one row per line.
type TextParser struct{}

// Format returns the parser name.
func (p *TextParser) Format() string { return "text" }

// Parse returns the transaction rows of r in file order. Lines that are not
// transactions are skipped.
func (p *TextParser) Parse(r io.Reader) ([]model.TransactionRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var recs []model.TransactionRecord
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRow(text)
		if errors.Is(err, ErrNotTransaction) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history text: %w", err)
	}
	return recs, nil
}
