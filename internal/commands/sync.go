package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/payoffcheck/internal/history"
)

func newSyncCommand(opts *globalOptions) *cobra.Command {
	var (
		watch  bool
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply every history file waiting in the inbox",
		Long: `Sync processes each file in inbox/ as the transaction history of the
contract it is named after (inbox/DN-1042.txt), then moves it to
inbox/processed/. Files that fail stay in the inbox.

With --watch, sync keeps running after the first pass and processes files
as they land in the inbox, committing after each one, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd, opts)
			if err != nil {
				return err
			}

			files, err := history.Scan(e.root)
			if err != nil {
				e.closer.Close()
				return err
			}

			reg := history.DefaultRegistry()
			var errs []error
			for _, f := range files {
				if err := syncFile(e, reg, f); err != nil {
					e.logger.Error("history file not processed", "file", f.Name, "err", err)
					errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
				}
			}
			synced := len(files) - len(errs)

			if watch {
				e.checkpoint(fmt.Sprintf("sync: %d file(s)", synced))
				synced = 0

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Fprintln(e.out, "Watching inbox, press Ctrl-C to stop")
				err := history.Watch(ctx, e.root, settle, func(f history.FileInfo) {
					if err := syncFile(e, reg, f); err != nil {
						e.logger.Error("history file not processed", "file", f.Name, "err", err)
						return
					}
					e.checkpoint("sync: " + f.Name)
				})
				if err != nil {
					errs = append(errs, err)
				}
			} else if len(files) == 0 {
				fmt.Fprintln(e.out, "Inbox is empty")
			}

			finishErr := e.finish(fmt.Sprintf("sync: %d file(s)", synced))
			return errors.Join(append(errs, finishErr)...)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep processing files as they arrive")
	cmd.Flags().DurationVar(&settle, "settle", 500*time.Millisecond, "how long a new file must be unchanged before it is read")

	return cmd
}

func syncFile(e *env, reg *history.Registry, f history.FileInfo) error {
	contractID, err := contractArg(f.ContractID)
	if err != nil {
		return err
	}
	records, err := reg.ParseFile(f.Path, f.Format)
	if err != nil {
		return err
	}
	res, err := e.ledger.Process(e.ctx, contractID, records, e.report)
	if err != nil {
		return err
	}
	if err := history.MarkProcessed(e.root, f.Name); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: %s (applied %d, already seen %d, unsuccessful %d)\n",
		contractID, res.State, res.Applied, res.Seen, res.Failed)
	return nil
}
