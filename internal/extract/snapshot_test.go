package extract

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

func TestSnapshot(t *testing.T) {
	x := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	snap := x.Snapshot(RawSnapshot{
		PlanAmount:             "$1,000.00",
		EstimatedServiceAmount: "$1,250.00",
		TotalPayments:          "10",
		RemainingPayments:      "6",
		MissingPayments:        "2",
		LateFeesCount:          "1",
		LateFees:               "$25.00",
		RecurringAmount:        "$119.90",
		DonatedAmount:          "$0.00",
		FixedFee:               "$4.15",
		NextPaymentDate:        "03/15/2026",
	})

	assert.True(t, snap.PlanAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, snap.EstimatedServiceAmount.Equal(decimal.NewFromInt(1250)))
	assert.Equal(t, 10, snap.TotalPayments)
	assert.Equal(t, 6, snap.RemainingPayments)
	assert.Equal(t, 2, snap.MissingPayments)
	assert.Equal(t, 1, snap.LateFeesCount)
	assert.True(t, snap.LateFeePerOccurrence.Equal(decimal.NewFromInt(25)))
	assert.True(t, snap.ObservedRecurringAmount.Equal(decimal.RequireFromString("119.90")))
	assert.True(t, snap.FixedFeeAmount.Equal(decimal.RequireFromString("4.15")))
	assert.Equal(t, "03/15/2026", snap.NextPaymentDate)
}

func TestExtractorLogsDefaults(t *testing.T) {
	var buf bytes.Buffer
	x := New(slog.New(slog.NewTextHandler(&buf, nil)))

	v := x.Amount("plan_amount", "pending")
	assert.True(t, v.IsZero())
	assert.Contains(t, buf.String(), "field parse defaulted")
	assert.Contains(t, buf.String(), "plan_amount")
}

func TestExtractorBlankFieldIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	x := New(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, 0, x.Count("late_fees_count", ""))
	assert.Empty(t, buf.String(), "blank fields log at debug only")
}

func TestDisplayed(t *testing.T) {
	x := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	d := x.Displayed(RawSnapshot{
		InterestRate:          "16.99%",
		PayoffAmount:          "$664.80",
		TotalBalanceRemaining: "$744.40",
		DownPaymentAmount:     "$250.00",
		MissingPayments:       "2",
	})
	assert.True(t, d.InterestRate.Equal(decimal.RequireFromString("16.99")))
	assert.True(t, d.PayoffAmount.Equal(decimal.RequireFromString("664.80")))
	assert.True(t, d.TotalBalanceRemaining.Equal(decimal.RequireFromString("744.40")))
	assert.True(t, d.DownPaymentAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 2, d.MissingPayments)

	assert.True(t, d.Has(model.FieldPayoffAmount))
	assert.False(t, d.Has(model.FieldRecurringAmount), "recurring amount was blank")
	assert.True(t, model.Displayed{}.Has(model.FieldRecurringAmount), "nil Shown means all")
}
