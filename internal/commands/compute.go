package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/payoffcheck/internal/extract"
	"github.com/cleared-dev/payoffcheck/internal/model"
)

func newComputeCommand(opts *globalOptions) *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "compute <snapshot.yaml>",
		Short: "Compute a contract's enrollment state from a scraped snapshot",
		Long: `Compute reads the contract page fields from a snapshot file, recomputes the
plan's derived amounts, stores them as the contract's Fetched and Calculated
rows, and checks them against the displayed values. Computing again starts
the contract's chain over.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			if contract != "" {
				raw.ContractID = contract
			}
			contractID, err := contractArg(raw.ContractID)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}

			x := extract.New(e.logger.With("contract", contractID))
			shown := x.Displayed(raw)
			st, err := e.ledger.Initialize(ctx, contractID, x.Snapshot(raw), shown)
			if err != nil {
				e.closer.Close()
				return err
			}
			e.report.CompareDisplayed(contractID, st, shown)

			printState(e.out, contractID, st)
			return e.finish("compute: " + contractID)
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "contract ID (overrides contract_id in the snapshot)")

	return cmd
}

func readSnapshot(path string) (extract.RawSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.RawSnapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	var raw extract.RawSnapshot
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return extract.RawSnapshot{}, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return raw, nil
}

func printState(w io.Writer, contractID string, st model.DerivedState) {
	fmt.Fprintf(w, "%s  %s\n", contractID, st.Stage)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Interest Rate\t%s\n", st.InterestRate.String())
	fmt.Fprintf(tw, "  Principal\t%s\n", st.PrincipalPerPayment.StringFixed(2))
	fmt.Fprintf(tw, "  Recurring Amount\t%s\n", st.RecurringAmount.StringFixed(2))
	fmt.Fprintf(tw, "  Interest Amount\t%s\n", st.InterestAmount.StringFixed(2))
	fmt.Fprintf(tw, "  Remaining Payments\t%d\n", st.RemainingPayments)
	fmt.Fprintf(tw, "  Missing Payments\t%d\n", st.MissingPayments)
	fmt.Fprintf(tw, "  Payoff\t%s\n", st.PayoffAmount.StringFixed(2))
	fmt.Fprintf(tw, "  Total Balance Remaining\t%s\n", st.TotalBalanceRemaining.StringFixed(2))
	fmt.Fprintf(tw, "  Down Payment\t%s\n", st.DownPaymentAmount.StringFixed(2))
	fmt.Fprintf(tw, "  Denefits Fee+Upfront\t%s\n", st.FeeUpfrontAmount.StringFixed(2))
	tw.Flush()
}
