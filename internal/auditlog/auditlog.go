// Package auditlog keeps the audit trail of ledger events in
// <root>/logs/audit-log.csv. Every entry of one CLI run shares a run ID.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp  time.Time
	RunID      string
	ContractID string
	Stage      string
	Action     string
	Details    string
	CommitHash string
}

// Actions recorded by the ledger and commands.
const (
	ActionInitialize = "initialize"
	ActionAdvance    = "advance"
	ActionSettle     = "settle"
	ActionObserve    = "observe"
	ActionSkip       = "skip"
	ActionReject     = "reject"
	ActionCommit     = "commit"
)

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,run_id,contract_id,stage,action,details,commit_hash"

const (
	numFields     = 7
	logDir        = "logs"
	logFile       = "logs/audit-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colContractID = 2
	colStage      = 3
	colAction     = 4
	colDetails    = 5
	colCommitHash = 6
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colContractID] = e.ContractID
	row[colStage] = e.Stage
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		RunID:      record[colRunID],
		ContractID: record[colContractID],
		Stage:      record[colStage],
		Action:     record[colAction],
		Details:    record[colDetails],
		CommitHash: record[colCommitHash],
	}, nil
}

// Recorder collects the entries of one run. A nil *Recorder discards
// everything, so callers that do not audit can pass nil.
type Recorder struct {
	RunID string
	Now   func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns a Recorder stamping entries with runID.
func NewRecorder(runID string) *Recorder {
	return &Recorder{RunID: runID, Now: time.Now}
}

// Record adds an entry.
func (r *Recorder) Record(contractID, stage, action, details string) {
	if r == nil {
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Timestamp:  now().UTC().Truncate(time.Second),
		RunID:      r.RunID,
		ContractID: contractID,
		Stage:      stage,
		Action:     action,
		Details:    details,
	})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Flush appends the recorded entries to the audit log under root, stamping
// them with commitHash, and clears the recorder.
func (r *Recorder) Flush(root, commitHash string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	for i := range r.entries {
		r.entries[i].CommitHash = commitHash
	}
	if err := Append(root, r.entries); err != nil {
		return err
	}
	r.entries = nil
	return nil
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/audit-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ForContract filters entries to one contract, keeping order.
func ForContract(entries []Entry, contractID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
