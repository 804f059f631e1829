// Package history reads scraped contract transaction history and classifies
// each row by its description.
//
// History files are dropped into <root>/inbox/, one per contract, named by
// contract ID: inbox/DN-1042.txt or inbox/DN-1042.csv. Processed files move to
// inbox/processed/.
package history

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// Parser converts a history file into transaction records.
type Parser interface {
	Parse(r io.Reader) ([]model.TransactionRecord, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a history file in the inbox.
type FileInfo struct {
	Name       string
	Path       string
	Size       int64
	ContractID string // file name without extension
	Format     string
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ParseFile parses path with the parser registered for format.
func (r *Registry) ParseFile(path, format string) ([]model.TransactionRecord, error) {
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("no parser for format %q", format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	recs, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&TextParser{})
	r.Register(&CSVParser{})
	return r
}

// FormatFor picks a parser format from a file name: "csv" for .csv,
// "text" for .txt and .log. Anything else returns "".
func FormatFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "csv"
	case ".txt", ".log":
		return "text"
	}
	return ""
}

// inboxDir is the subdirectory for pending history files.
const inboxDir = "inbox"

// processedDir is the subdirectory for processed history files.
const processedDir = "inbox/processed"

// Scan returns history files in <root>/inbox/ sorted by name.
// A missing inbox is not an error.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, inboxDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format := FormatFor(e.Name())
		if format == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, inboxFile(dir, e.Name(), info.Size(), format))
	}
	return files, nil
}

func inboxFile(dir, name string, size int64, format string) FileInfo {
	return FileInfo{
		Name:       name,
		Path:       filepath.Join(dir, name),
		Size:       size,
		ContractID: strings.TrimSuffix(name, filepath.Ext(name)),
		Format:     format,
	}
}

// MarkProcessed moves a file from inbox/ to inbox/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, inboxDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
