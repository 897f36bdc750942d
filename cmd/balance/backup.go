package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write a JSON backup of the whole ledger",
		Long: `Write a versioned JSON backup containing every collection and setting.
Without a file argument the backup is written to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			doc, err := l.ExportSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}

			if len(args) == 1 {
				fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d accounts and %d transactions to %s",
					len(doc.Data.Accounts), len(doc.Data.Transactions), args[0])))
			}
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var (
		modeName string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a JSON backup",
		Long: `Restore a JSON backup made with 'balance export'.

Merge mode keeps local records and lets the backup win where ids collide.
Overwrite mode replaces everything; a checkpoint is taken first.
Balances are recomputed from the resulting transaction log either way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mode, err := reconcile.ParseMode(modeName)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			doc, err := reconcile.Decode(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			if mode == reconcile.ModeOverwrite && !yes {
				ok, err := cli.NewNonBlockingReader(cmd.InOrStdin()).Confirm(ctx, cmd.OutOrStdout(),
					"This replaces every account, transaction and setting. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Import cancelled"))
					return nil
				}
			}

			l, closeLedger, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			start := time.Now()
			l.Engine().WithProgress(cli.ProgressReporter(cmd.ErrOrStderr(), "Importing"))
			if err := l.ImportSnapshot(ctx, doc, mode); err != nil {
				return err
			}

			summary := l.Summary()
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %s in %s (%s mode)",
				args[0], time.Since(start).Round(time.Millisecond), mode)))
			fmt.Fprintf(cmd.OutOrStdout(), "  Net worth: %s\n", cli.FormatMoney(summary.NetWorth, l.Settings().Currency))
			return nil
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", string(reconcile.ModeMerge), "import mode (merge, overwrite)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the overwrite confirmation")

	return cmd
}

func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all data and restore the default categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !yes {
				ok, err := cli.NewNonBlockingReader(cmd.InOrStdin()).Confirm(ctx, cmd.OutOrStdout(),
					"This erases every account and transaction. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Reset cancelled"))
					return nil
				}
			}

			l, closeLedger, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.ResetAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Ledger reset"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}
