package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// SheetName is the worksheet a contract record is written to.
const SheetName = "Contract"

// XLSXStore keeps one <contractID>.xlsx workbook per contract under a directory,
// the layout testers open in a spreadsheet between runs.
type XLSXStore struct {
	dir    string
	logger *slog.Logger
}

// NewXLSXStore creates an XLSXStore rooted at dir.
func NewXLSXStore(dir string, logger *slog.Logger) *XLSXStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXStore{dir: dir, logger: logger}
}

// Path returns the workbook a contract's record lives in.
func (s *XLSXStore) Path(contractID string) string {
	return filepath.Join(s.dir, contractID+".xlsx")
}

// Load reads a contract's workbook. A missing workbook is an empty record;
// a workbook without the Contract sheet falls back to its first sheet.
func (s *XLSXStore) Load(_ context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}
	path := s.Path(contractID)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no contract workbook yet", "contract", contractID, "path", path)
		return &model.ContractRecord{ContractID: contractID}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening contract workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("contract workbook %s has no sheets", path)
		}
		s.logger.Warn("contract workbook has no Contract sheet", "path", path, "using", sheets[0])
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s of %s: %w", sheet, path, err)
	}
	rec, err := DecodeSheet(contractID, rows, s.logger)
	if err != nil {
		return nil, fmt.Errorf("reading contract workbook %s: %w", path, err)
	}
	return rec, nil
}

// Save rewrites a contract's workbook in full.
func (s *XLSXStore) Save(_ context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating records dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for i, row := range EncodeSheet(rec) {
		if len(row) == 0 {
			continue
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(SheetName, cellName, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	path := s.Path(rec.ContractID)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving contract workbook %s: %w", path, err)
	}
	return nil
}
