package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/payoffcheck/internal/history"
)

func newTransactionsCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "transactions <contract-id> <history-file>",
		Short: "Apply a contract's scraped transaction history",
		Long: `Transactions parses a scraped history file (one row per line, or CSV) and
advances the contract through each payment not seen before. The stored
transaction history is replaced with the file's rows.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractID, err := contractArg(args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = history.FormatFor(args[1])
			}
			if format == "" {
				return fmt.Errorf("cannot tell the format of %s, use --format", args[1])
			}

			records, err := history.DefaultRegistry().ParseFile(args[1], format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}

			res, err := e.ledger.Process(ctx, contractID, records, e.report)
			if err != nil {
				e.closer.Close()
				return err
			}
			fmt.Fprintf(e.out, "%s: %s (applied %d, already seen %d, unsuccessful %d)\n",
				contractID, res.State, res.Applied, res.Seen, res.Failed)

			return e.finish("transactions: " + contractID)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "history format: text or csv (default from file extension)")

	return cmd
}
