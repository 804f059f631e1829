package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// CSVStore keeps one <contractID>.csv file per contract under a directory.
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

// NewCSVStore creates a CSVStore rooted at dir.
func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{dir: dir, logger: logger}
}

// Path returns the file a contract's record lives in.
func (s *CSVStore) Path(contractID string) string {
	return filepath.Join(s.dir, contractID+".csv")
}

// Load reads a contract's file. A missing file is an empty record.
func (s *CSVStore) Load(_ context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}
	path := s.Path(contractID)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no contract record yet", "contract", contractID, "path", path)
		return &model.ContractRecord{ContractID: contractID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening contract record %s: %w", path, err)
	}
	defer f.Close()

	rec, err := ReadRecord(f, contractID, s.logger)
	if err != nil {
		return nil, fmt.Errorf("reading contract record %s: %w", path, err)
	}
	return rec, nil
}

// Save rewrites a contract's file in full.
func (s *CSVStore) Save(_ context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating records dir: %w", err)
	}
	path := s.Path(rec.ContractID)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating contract record %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteRecord(f, rec); err != nil {
		return fmt.Errorf("writing contract record %s: %w", path, err)
	}
	return nil
}

// ReadRecord decodes a record from CSV.
func ReadRecord(r io.Reader, contractID string, logger *slog.Logger) (*model.ContractRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading record CSV: %w", err)
	}
	return DecodeSheet(contractID, rows, logger)
}

// WriteRecord encodes a record as CSV.
func WriteRecord(w io.Writer, rec *model.ContractRecord) error {
	cw := csv.NewWriter(w)
	for i, row := range EncodeSheet(rec) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
