package store

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// Columns is the header of the stage table, in order.
var Columns = []string{
	"Type",
	"Contract ID",
	"Service Amount",
	"Plan Amount",
	"Down Payment",
	"Interest Rate",
	"Total Payments",
	"Remaining Payments",
	"Principal",
	"Recurring Amount",
	"Total Balance Remaining",
	"Payoff",
	"Next Payment Date",
	"Missing Payments",
	"Late Fees Count",
	"Late Fees",
	"Denefits Fee",
	"Donated",
	"Interest Amount",
	"Denefits Fee+Upfront",
	"Sequence",
}

// HistoryMarker is the single-cell row that opens the transaction history block.
const HistoryMarker = "Transaction History"

// HistoryColumns is the header of the transaction history block.
var HistoryColumns = []string{"Date", "Amount", "Description", "Full Text", "Kind", "Success"}

// DateFormat is the on-screen transaction date layout.
const DateFormat = "01/02/2006"

const (
	colType = iota
	colContractID
	colService
	colPlan
	colDownPayment
	colRate
	colTotal
	colRemaining
	colPrincipal
	colRecurring
	colBalance
	colPayoff
	colNextDate
	colMissing
	colLateCount
	colLateFees
	colFixedFee
	colDonated
	colInterest
	colFeeUpfront
	colSequence
)

const (
	hcolDate = iota
	hcolAmount
	hcolDesc
	hcolRaw
	hcolKind
	hcolSuccess
)

// EncodeSheet lays a record out as rows of cells: the stage table, a blank
// row, then the transaction history block.
func EncodeSheet(rec *model.ContractRecord) [][]string {
	rows := [][]string{append([]string(nil), Columns...)}
	for _, r := range rec.Rows {
		rows = append(rows, MarshalRow(r))
	}
	rows = append(rows, []string{}, []string{HistoryMarker}, append([]string(nil), HistoryColumns...))
	for _, t := range rec.History {
		rows = append(rows, MarshalTransaction(t))
	}
	return rows
}

// MarshalRow converts a StageRow to cells in Columns order.
func MarshalRow(r model.StageRow) []string {
	row := make([]string, len(Columns))
	row[colType] = string(r.Type)
	row[colContractID] = r.ContractID
	row[colService] = r.ServiceAmount.String()
	row[colPlan] = r.PlanAmount.String()
	row[colDownPayment] = r.DownPayment.String()
	row[colRate] = r.InterestRate.String()
	row[colTotal] = strconv.Itoa(r.TotalPayments)
	row[colRemaining] = strconv.Itoa(r.RemainingPayments)
	row[colPrincipal] = r.Principal.String()
	row[colRecurring] = r.RecurringAmount.String()
	row[colBalance] = r.TotalBalanceRemaining.String()
	row[colPayoff] = r.Payoff.String()
	row[colNextDate] = r.NextPaymentDate
	row[colMissing] = strconv.Itoa(r.MissingPayments)
	row[colLateCount] = strconv.Itoa(r.LateFeesCount)
	row[colLateFees] = r.LateFees.String()
	row[colFixedFee] = r.FixedFee.String()
	row[colDonated] = r.Donated.String()
	row[colInterest] = r.InterestAmount.String()
	row[colFeeUpfront] = r.FeeUpfront.String()
	row[colSequence] = strconv.Itoa(r.Sequence)
	return row
}

// MarshalTransaction converts a TransactionRecord to cells in HistoryColumns order.
func MarshalTransaction(t model.TransactionRecord) []string {
	row := make([]string, len(HistoryColumns))
	if !t.Date.IsZero() {
		row[hcolDate] = t.Date.Format(DateFormat)
	}
	row[hcolAmount] = t.Amount.StringFixed(2)
	row[hcolDesc] = t.Description
	row[hcolRaw] = t.Raw
	row[hcolKind] = string(t.Kind)
	row[hcolSuccess] = strconv.FormatBool(t.Success)
	return row
}

// sheetReader decodes cells leniently: absent columns and unreadable numbers
// become zero values, each reported once as a warning.
type sheetReader struct {
	contractID string
	logger     *slog.Logger
	warned     map[string]bool
}

// DecodeSheet parses rows written by EncodeSheet. Columns are matched by
// header name. A row with an unknown stage label is a structural error.
func DecodeSheet(contractID string, rows [][]string, logger *slog.Logger) (*model.ContractRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sr := &sheetReader{contractID: contractID, logger: logger, warned: map[string]bool{}}
	rec := &model.ContractRecord{ContractID: contractID}

	i := 0
	for i < len(rows) && blank(rows[i]) {
		i++
	}
	if i == len(rows) {
		return rec, nil
	}

	var stageIdx map[string]int
	if cell(rows[i], 0) != HistoryMarker {
		stageIdx = index(rows[i])
		if _, ok := stageIdx["Type"]; !ok {
			return nil, fmt.Errorf("contract %s: stage table has no Type column", contractID)
		}
		for i++; i < len(rows) && cell(rows[i], 0) != HistoryMarker; i++ {
			if blank(rows[i]) {
				continue
			}
			row, err := sr.stageRow(stageIdx, rows[i])
			if err != nil {
				return nil, fmt.Errorf("contract %s row %d: %w", contractID, i+1, err)
			}
			rec.Put(row)
		}
	}
	if i >= len(rows) {
		sr.warn("history", "no transaction history block")
		return rec, nil
	}

	// rows[i] is the marker; the history header follows.
	i++
	for i < len(rows) && blank(rows[i]) {
		i++
	}
	if i == len(rows) {
		return rec, nil
	}
	histIdx := index(rows[i])
	for i++; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		rec.History = append(rec.History, sr.transaction(histIdx, rows[i]))
	}
	return rec, nil
}

func (sr *sheetReader) stageRow(idx map[string]int, cells []string) (model.StageRow, error) {
	get := func(col int) string { return sr.get(idx, cells, Columns[col]) }
	stage := model.Stage(get(colType))
	if !stage.Valid() {
		return model.StageRow{}, fmt.Errorf("unknown stage %q", stage)
	}
	return model.StageRow{
		Type:                  stage,
		ContractID:            sr.contractID,
		ServiceAmount:         sr.dec(Columns[colService], get(colService)),
		PlanAmount:            sr.dec(Columns[colPlan], get(colPlan)),
		DownPayment:           sr.dec(Columns[colDownPayment], get(colDownPayment)),
		InterestRate:          sr.dec(Columns[colRate], get(colRate)),
		TotalPayments:         sr.count(Columns[colTotal], get(colTotal)),
		RemainingPayments:     sr.count(Columns[colRemaining], get(colRemaining)),
		Principal:             sr.dec(Columns[colPrincipal], get(colPrincipal)),
		RecurringAmount:       sr.dec(Columns[colRecurring], get(colRecurring)),
		TotalBalanceRemaining: sr.dec(Columns[colBalance], get(colBalance)),
		Payoff:                sr.dec(Columns[colPayoff], get(colPayoff)),
		NextPaymentDate:       get(colNextDate),
		MissingPayments:       sr.count(Columns[colMissing], get(colMissing)),
		LateFeesCount:         sr.count(Columns[colLateCount], get(colLateCount)),
		LateFees:              sr.dec(Columns[colLateFees], get(colLateFees)),
		FixedFee:              sr.dec(Columns[colFixedFee], get(colFixedFee)),
		Donated:               sr.dec(Columns[colDonated], get(colDonated)),
		InterestAmount:        sr.dec(Columns[colInterest], get(colInterest)),
		FeeUpfront:            sr.dec(Columns[colFeeUpfront], get(colFeeUpfront)),
		Sequence:              sr.count(Columns[colSequence], get(colSequence)),
	}, nil
}

func (sr *sheetReader) transaction(idx map[string]int, cells []string) model.TransactionRecord {
	get := func(col int) string { return sr.get(idx, cells, HistoryColumns[col]) }
	t := model.TransactionRecord{
		Amount:      sr.dec("Amount", get(hcolAmount)),
		Description: get(hcolDesc),
		Raw:         get(hcolRaw),
		Kind:        model.TransactionKind(get(hcolKind)),
		Success:     true,
	}
	if t.Kind == "" {
		t.Kind = model.KindOther
	}
	if s := get(hcolDate); s != "" {
		d, err := time.Parse(DateFormat, s)
		if err != nil {
			sr.warn("Date", fmt.Sprintf("unreadable date %q", s))
		} else {
			t.Date = d
		}
	}
	if s := get(hcolSuccess); s != "" {
		ok, err := strconv.ParseBool(s)
		if err != nil {
			sr.warn("Success", fmt.Sprintf("unreadable flag %q", s))
		} else {
			t.Success = ok
		}
	}
	return t
}

func (sr *sheetReader) get(idx map[string]int, cells []string, name string) string {
	i, ok := idx[name]
	if !ok {
		sr.warn(name, "column missing, using zero")
		return ""
	}
	return cell(cells, i)
}

func (sr *sheetReader) dec(name, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		sr.warn(name, fmt.Sprintf("unreadable amount %q, using zero", s))
		return decimal.Zero
	}
	return d
}

func (sr *sheetReader) count(name, s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		sr.warn(name, fmt.Sprintf("unreadable count %q, using zero", s))
		return 0
	}
	return n
}

func (sr *sheetReader) warn(column, msg string) {
	if sr.warned[column+msg] {
		return
	}
	sr.warned[column+msg] = true
	sr.logger.Warn("contract record: "+msg, "contract", sr.contractID, "column", column)
}

func index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
