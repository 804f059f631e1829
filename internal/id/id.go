package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// NormalizeContractID trims a contract ID as copied from the portal
// ("#DN-1042 ", "Contract ID: dn-1042") down to "DN-1042".
// Only letters, digits, '-' and '_' are allowed.
func NormalizeContractID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	s = strings.TrimPrefix(s, "#")
	s = strings.ToUpper(s)

	if s == "" {
		return "", fmt.Errorf("empty contract ID in %q", raw)
	}
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return "", fmt.Errorf("invalid character %q in contract ID %q", r, raw)
	}
	return s, nil
}

// NewRunID returns a fresh identifier for one CLI run. Audit entries of the
// same run share it.
func NewRunID() string {
	return uuid.NewString()
}

// ShortRunID returns the first block of a run ID, "3f1c2a9e" for
// "3f1c2a9e-....". Used in commit messages.
func ShortRunID(runID string) string {
	group, _, _ := strings.Cut(runID, "-")
	return group
}

// TransactionKey identifies a history row independent of how it was scraped:
// "20260115|119.90|FeeUpfront|ok|denefits fee + upfront payment".
// Two scrapes of the same payment produce the same key.
func TransactionKey(rec model.TransactionRecord) string {
	status := "ok"
	if !rec.Success {
		status = "failed"
	}
	desc := strings.ToLower(strings.Join(strings.Fields(rec.Description), " "))
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		rec.Date.Format("20060102"),
		rec.Amount.StringFixed(2),
		rec.Kind,
		status,
		desc,
	)
}
