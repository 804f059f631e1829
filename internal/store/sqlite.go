package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// SQLiteStore keeps every contract in one SQLite database, one row per
// stage and one row per transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	stageSQLCols   = sqlNames(Columns)
	historySQLCols = sqlNames(HistoryColumns)
)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)

	for _, stmt := range schema() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func schema() []string {
	stageCols := make([]string, len(stageSQLCols))
	for i, c := range stageSQLCols {
		stageCols[i] = c + " TEXT NOT NULL DEFAULT ''"
	}
	histCols := make([]string, len(historySQLCols))
	for i, c := range historySQLCols {
		histCols[i] = c + " TEXT NOT NULL DEFAULT ''"
	}
	return []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
		`CREATE TABLE IF NOT EXISTS stage_rows (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			` + strings.Join(stageCols, ",\n\t\t\t") + `,
			PRIMARY KEY (record_id, type)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			` + strings.Join(histCols, ",\n\t\t\t") + `,
			PRIMARY KEY (record_id, position)
		)`,
	}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads a contract's rows. A contract with no rows is an empty record.
func (s *SQLiteStore) Load(ctx context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}

	stageRows, err := s.selectCells(ctx, "stage_rows", stageSQLCols, contractID)
	if err != nil {
		return nil, err
	}
	histRows, err := s.selectCells(ctx, "transactions", historySQLCols, contractID)
	if err != nil {
		return nil, err
	}

	sheet := make([][]string, 0, len(stageRows)+len(histRows)+3)
	sheet = append(sheet, Columns)
	sheet = append(sheet, stageRows...)
	sheet = append(sheet, []string{HistoryMarker}, HistoryColumns)
	sheet = append(sheet, histRows...)
	return DecodeSheet(contractID, sheet, s.logger)
}

// Save replaces a contract's rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save of %s: %w", rec.ContractID, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"stage_rows", "transactions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE record_id = ?", rec.ContractID); err != nil {
			return fmt.Errorf("clearing %s for %s: %w", table, rec.ContractID, err)
		}
	}
	for i, row := range rec.Rows {
		row.ContractID = rec.ContractID
		if err := insertCells(ctx, tx, "stage_rows", stageSQLCols, rec.ContractID, i, MarshalRow(row)); err != nil {
			return err
		}
	}
	for i, t := range rec.History {
		if err := insertCells(ctx, tx, "transactions", historySQLCols, rec.ContractID, i, MarshalTransaction(t)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save of %s: %w", rec.ContractID, err)
	}
	return nil
}

func (s *SQLiteStore) selectCells(ctx context.Context, table string, cols []string, contractID string) ([][]string, error) {
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + table + " WHERE record_id = ? ORDER BY position"
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("querying %s for %s: %w", table, contractID, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cells := make([]string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s for %s: %w", table, contractID, err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s for %s: %w", table, contractID, err)
	}
	return out, nil
}

func insertCells(ctx context.Context, tx *sql.Tx, table string, cols []string, contractID string, position int, cells []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	query := "INSERT INTO " + table + " (record_id, position, " + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
	args := make([]any, 0, len(cols)+2)
	args = append(args, contractID, position)
	for _, c := range cells {
		args = append(args, c)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting into %s for %s: %w", table, contractID, err)
	}
	return nil
}

// sqlNames turns header labels into column identifiers: "Denefits Fee+Upfront" -> denefits_fee_upfront.
func sqlNames(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.Join(strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < '0' || r > '9')
		}), "_")
	}
	return out
}
