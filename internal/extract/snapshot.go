package extract

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// RawSnapshot holds contract page fields exactly as the UI shows them.
type RawSnapshot struct {
	ContractID             string `yaml:"contract_id"`
	PlanAmount             string `yaml:"plan_amount"`
	EstimatedServiceAmount string `yaml:"service_amount"`
	TotalPayments          string `yaml:"total_payments"`
	RemainingPayments      string `yaml:"remaining_payments"`
	MissingPayments        string `yaml:"missing_payments"`
	LateFeesCount          string `yaml:"late_fees_count"`
	LateFees               string `yaml:"late_fees"`
	RecurringAmount        string `yaml:"recurring_amount"`
	DonatedAmount          string `yaml:"donated_amount"`
	FixedFee               string `yaml:"fixed_fee"`
	NextPaymentDate        string `yaml:"next_payment_date"`

	// Values the application derives itself.
	InterestRate          string `yaml:"interest_rate"`
	PayoffAmount          string `yaml:"payoff_amount"`
	TotalBalanceRemaining string `yaml:"total_balance_remaining"`
	DownPaymentAmount     string `yaml:"down_payment_amount"`
}

// Extractor parses raw fields and logs every default it applies.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Amount parses one field, logging a warning when a default is used.
func (x *Extractor) Amount(field, text string) decimal.Decimal {
	v, err := Amount(text)
	if err != nil {
		x.warn(field, text, v.String())
	}
	return v
}

// Count parses one integer field, logging a warning when a default is used.
func (x *Extractor) Count(field, text string) int {
	n, err := Count(text)
	if err != nil {
		x.warn(field, text, strconv.Itoa(n))
	}
	return n
}

// Blank fields are common on fresh contracts and only worth a debug line.
func (x *Extractor) warn(field, text, value string) {
	if strings.TrimSpace(text) == "" {
		x.logger.Debug("field blank, defaulted", "field", field, "value", value)
		return
	}
	x.logger.Warn("field parse defaulted", "field", field, "text", text, "value", value)
}

// Snapshot converts the input fields of raw into a PlanSnapshot.
func (x *Extractor) Snapshot(raw RawSnapshot) model.PlanSnapshot {
	return model.PlanSnapshot{
		PlanAmount:              x.Amount("plan_amount", raw.PlanAmount),
		EstimatedServiceAmount:  x.Amount("service_amount", raw.EstimatedServiceAmount),
		TotalPayments:           x.Count("total_payments", raw.TotalPayments),
		RemainingPayments:       x.Count("remaining_payments", raw.RemainingPayments),
		MissingPayments:         x.Count("missing_payments", raw.MissingPayments),
		LateFeesCount:           x.Count("late_fees_count", raw.LateFeesCount),
		LateFeePerOccurrence:    x.Amount("late_fees", raw.LateFees),
		ObservedRecurringAmount: x.Amount("recurring_amount", raw.RecurringAmount),
		DonatedAmount:           x.Amount("donated_amount", raw.DonatedAmount),
		FixedFeeAmount:          x.Amount("fixed_fee", raw.FixedFee),
		NextPaymentDate:         raw.NextPaymentDate,
	}
}

// Displayed converts the application-derived fields of raw.
func (x *Extractor) Displayed(raw RawSnapshot) model.Displayed {
	shown := make(map[string]bool)
	for field, text := range map[string]string{
		model.FieldInterestRate:          raw.InterestRate,
		model.FieldRecurringAmount:       raw.RecurringAmount,
		model.FieldPayoffAmount:          raw.PayoffAmount,
		model.FieldTotalBalanceRemaining: raw.TotalBalanceRemaining,
		model.FieldDownPaymentAmount:     raw.DownPaymentAmount,
		model.FieldMissingPayments:       raw.MissingPayments,
	} {
		if strings.TrimSpace(text) != "" {
			shown[field] = true
		}
	}
	return model.Displayed{
		InterestRate:          x.Amount(model.FieldInterestRate, raw.InterestRate),
		RecurringAmount:       x.Amount(model.FieldRecurringAmount, raw.RecurringAmount),
		PayoffAmount:          x.Amount(model.FieldPayoffAmount, raw.PayoffAmount),
		TotalBalanceRemaining: x.Amount(model.FieldTotalBalanceRemaining, raw.TotalBalanceRemaining),
		DownPaymentAmount:     x.Amount(model.FieldDownPaymentAmount, raw.DownPaymentAmount),
		MissingPayments:       x.Count(model.FieldMissingPayments, raw.MissingPayments),
		Shown:                 shown,
	}
}
