package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/payoffcheck/internal/config"
	"github.com/cleared-dev/payoffcheck/internal/extract"
	"github.com/cleared-dev/payoffcheck/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var backend string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new payoffcheck project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, backend, !noGit)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "csv", "record store: csv, xlsx, sqlite, s3, redis")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

// exampleSnapshot shows the fields compute reads, as the portal displays them.
var exampleSnapshot = extract.RawSnapshot{
	ContractID:             "DN-1042",
	PlanAmount:             "$1,000.00",
	EstimatedServiceAmount: "$1,250.00",
	TotalPayments:          "10",
	RemainingPayments:      "6",
	MissingPayments:        "0",
	LateFeesCount:          "0",
	LateFees:               "$0.00",
	RecurringAmount:        "$119.90",
	DonatedAmount:          "$0.00",
	FixedFee:               "138.35+4.15",
	NextPaymentDate:        "03/15/2026",
	InterestRate:           "19.90%",
	PayoffAmount:           "$600.00",
	TotalBalanceRemaining:  "$719.40",
	DownPaymentAmount:      "$250.00",
}

func runInit(out io.Writer, dir, backend string, useGit bool) error {
	cfg := config.Default()
	cfg.Store.Backend = backend
	cfg.Git.AutoCommit = useGit
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	dirs := []string{
		"records",
		"snapshots",
		"logs",
		"inbox",
		filepath.Join("inbox", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	example, err := yaml.Marshal(exampleSnapshot)
	if err != nil {
		return fmt.Errorf("marshaling example snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "snapshots", "example.yaml"), example, 0o644); err != nil {
		return fmt.Errorf("writing example snapshot: %w", err)
	}

	gitignore := "*.db-journal\n*.db-wal\n*.db-shm\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "inbox", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if !useGit {
		fmt.Fprintf(out, "Initialized payoffcheck project at %s\n", dir)
		return nil
	}

	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.Commit(dir, "init: Initialize payoffcheck project", cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized payoffcheck project at %s (%s)\n", dir, hash)
	return nil
}
