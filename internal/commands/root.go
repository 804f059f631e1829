package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/payoffcheck/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "payoffcheck",
		Short:   "Recompute and verify contract payoff amounts",
		Version: buildinfo.Summary(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newInitCommand(),
		newComputeCommand(&opts),
		newTransactionsCommand(&opts),
		newSyncCommand(&opts),
		newShowCommand(&opts),
	)

	return rootCmd
}
