package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/payoffcheck/internal/auditlog"
	"github.com/cleared-dev/payoffcheck/internal/config"
	"github.com/cleared-dev/payoffcheck/internal/gitops"
	"github.com/cleared-dev/payoffcheck/internal/id"
	"github.com/cleared-dev/payoffcheck/internal/ledger"
	"github.com/cleared-dev/payoffcheck/internal/report"
	"github.com/cleared-dev/payoffcheck/internal/store"
)

type globalOptions struct {
	repo    string
	verbose bool
}

// env is everything one run needs, built from the project's payoffcheck.yaml.
type env struct {
	ctx    context.Context
	root   string
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	closer io.Closer
	audit  *auditlog.Recorder
	ledger *ledger.Ledger
	report *report.Report
	out    io.Writer
}

func openEnv(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*env, error) {
	root, err := filepath.Abs(opts.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	s, closer, err := store.Open(ctx, cfg.Store, root, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	runID := id.NewRunID()
	audit := auditlog.NewRecorder(runID)
	logger = logger.With("run", id.ShortRunID(runID))

	return &env{
		ctx:    ctx,
		root:   root,
		cfg:    cfg,
		logger: logger,
		store:  s,
		closer: closer,
		audit:  audit,
		ledger: ledger.New(s, logger, audit),
		report: report.New(decimal.NewFromFloat(cfg.Checks.Tolerance)),
		out:    cmd.OutOrStdout(),
	}, nil
}

// finish checkpoints the run, prints the mismatch report and closes the
// store. It returns an error when any check failed.
func (e *env) finish(message string) error {
	defer e.closer.Close()

	e.checkpoint(message)

	if len(e.report.Checks()) > 0 {
		if err := e.report.Write(e.out); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	if n := len(e.report.Failures()); n > 0 {
		return fmt.Errorf("%d check(s) failed", n)
	}
	return nil
}

// checkpoint commits the records when configured and appends the audit trail
// recorded since the last checkpoint.
func (e *env) checkpoint(message string) {
	var hash string
	if paths := e.commitPaths(); e.cfg.Git.AutoCommit && len(paths) > 0 && gitops.IsRepo(e.root) {
		msg := fmt.Sprintf("%s (run %s)", message, id.ShortRunID(e.audit.RunID))
		h, err := gitops.Commit(e.root, msg, e.cfg.Git.AuthorName, e.cfg.Git.AuthorEmail, paths...)
		if err != nil {
			e.logger.Warn("committing records failed", "err", err)
		} else if h != "" {
			hash = h
			e.audit.Record("", "", auditlog.ActionCommit, msg)
		}
	}

	if err := e.audit.Flush(e.root, hash); err != nil {
		e.logger.Warn("writing audit log failed", "err", err)
	}
}

// commitPaths lists what a run may change that exists on disk: the records,
// the inbox and the audit log of earlier runs.
func (e *env) commitPaths() []string {
	paths := []string{"inbox", "logs"}
	switch e.cfg.Store.Backend {
	case "csv", "xlsx":
		paths = append(paths, e.cfg.Store.Dir)
	case "sqlite":
		paths = append(paths, e.cfg.Store.SQLite.Path)
	}
	var existing []string
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(p) {
			full = filepath.Join(e.root, p)
		}
		if hasFiles(full) {
			existing = append(existing, p)
		}
	}
	return existing
}

// hasFiles reports whether path is a file or a directory holding at least
// one file. git add rejects pathspecs that match nothing.
func hasFiles(path string) bool {
	found := false
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func contractArg(raw string) (string, error) {
	contractID, err := id.NormalizeContractID(raw)
	if err != nil {
		return "", fmt.Errorf("contract ID: %w", err)
	}
	return contractID, nil
}
