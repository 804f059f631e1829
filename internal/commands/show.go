package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/payoffcheck/internal/auditlog"
	"github.com/cleared-dev/payoffcheck/internal/ledger"
)

func newShowCommand(opts *globalOptions) *cobra.Command {
	var withAudit bool

	cmd := &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Print a contract's stored stages and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractID, err := contractArg(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			rec, err := e.store.Load(e.ctx, contractID)
			if err != nil {
				return err
			}
			if len(rec.Rows) == 0 && len(rec.History) == 0 {
				return fmt.Errorf("no record for contract %s", contractID)
			}

			fmt.Fprintf(e.out, "%s  %s\n\n", contractID, ledger.StateOf(rec))

			tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Type\tSeq\tRemaining\tMissing\tRecurring\tPayoff\tTotal Balance\tFee+Upfront")
			for _, r := range rec.Rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
					r.Type, r.Sequence, r.RemainingPayments, r.MissingPayments,
					r.RecurringAmount.StringFixed(2), r.Payoff.StringFixed(2),
					r.TotalBalanceRemaining.StringFixed(2), r.FeeUpfront.StringFixed(2))
			}
			tw.Flush()

			if len(rec.History) > 0 {
				fmt.Fprintf(e.out, "\nTransaction History (%d)\n", len(rec.History))
				for _, t := range rec.History {
					status := ""
					if !t.Success {
						status = "  (unsuccessful)"
					}
					fmt.Fprintf(e.out, "  %s  %10s  %-14s %s%s\n",
						t.Date.Format("01/02/2006"), t.Amount.StringFixed(2), t.Kind, t.Description, status)
				}
			}

			if withAudit {
				entries, err := auditlog.Read(e.root)
				if err != nil {
					return err
				}
				entries = auditlog.ForContract(entries, contractID)
				fmt.Fprintf(e.out, "\nAudit (%d)\n", len(entries))
				for _, a := range entries {
					fmt.Fprintf(e.out, "  %s  %-10s %-22s %s\n",
						a.Timestamp.Format("2006-01-02 15:04:05"), a.Action, a.Stage, a.Details)
				}
			}
			if problems := ledger.ValidateRecord(rec); len(problems) > 0 {
				fmt.Fprintf(e.out, "\nRecord problems (%d)\n", len(problems))
				for _, p := range problems {
					fmt.Fprintf(e.out, "  %s\n", p)
				}
				return fmt.Errorf("record for %s failed %d validation check(s)", contractID, len(problems))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withAudit, "audit", false, "also print the contract's audit trail")

	return cmd
}
