package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX (Quicken) files exported from your bank
into one ledger account. Re-importing the same file replaces the earlier
transactions instead of duplicating them.

Examples:
  # Import a checking account statement
  balance import-ofx --account acc-checking ~/Downloads/chase_jan_2025.qfx

  # Import every card statement in a directory
  balance import-ofx --account acc-visa ~/Downloads/Visa/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("account", "", "ledger account to import into")
	cmd.Flags().String("income-category", "", "category for credits (default cat-other)")
	cmd.Flags().String("expense-category", "", "category for debits (default cat-other)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountID, _ := cmd.Flags().GetString("account")
	incomeCategory, _ := cmd.Flags().GetString("income-category")
	expenseCategory, _ := cmd.Flags().GetString("expense-category")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	l, closeLedger, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	account, ok := l.Account(accountID)
	if !ok {
		return common.NewUserError("unknown account", common.NotFound("account", accountID))
	}
	target := ofx.Target{Account: account, IncomeCategory: incomeCategory, ExpenseCategory: expenseCategory}

	slog.Info("Importing OFX files",
		"file_count", len(files),
		"account", account.Name,
		"dry_run", dryRun)

	parser := ofx.NewParser()
	var (
		payloads []ledger.TransactionInput
		skipped  int
	)
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			slog.Error("Failed to open file", "file", file, "error", err)
			continue
		}
		statements, err := parser.Parse(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse file", "file", file, "error", err)
			continue
		}

		for _, stmt := range statements {
			if stmt.IsCreditCard != account.IsCard() {
				slog.Warn("Statement type does not match account kind",
					"file", file, "statement_account", stmt.AccountID, "account_kind", account.Kind)
			}
			p, s := ofx.Payloads(stmt, target)
			payloads = append(payloads, p...)
			skipped += s
		}
		slog.Info("Parsed file", "file", filepath.Base(file), "statements", len(statements))
	}

	if len(payloads) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("No transactions to import (%d skipped)", skipped)))
		return nil
	}

	if dryRun {
		rows := make([][]string, 0, len(payloads))
		for _, p := range payloads {
			rows = append(rows, []string{p.Datetime[:10], string(p.Kind), fmt.Sprintf("%.2f", p.Amount), p.CategoryID, p.Note})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Date", "Kind", "Amount", "Category", "Note"}, rows))
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions would be imported, %d skipped", len(payloads), skipped)))
		return nil
	}

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(payloads), "Importing")
	var imported, rejected int
	for _, p := range payloads {
		_, err := l.SubmitTransaction(ctx, p, false)
		switch {
		case err == nil:
			imported++
		case errors.Is(err, ledger.ErrValidation):
			rejected++
			slog.Warn("Rejected OFX entry", "id", p.ID, "error", err)
		default:
			_ = bar.Finish()
			return err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d transactions into %s", imported, account.Name)))
	if skipped+rejected > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%d skipped, %d rejected", skipped, rejected)))
	}
	return nil
}

// expandPatterns expands globs, keeping literal paths that exist.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, common.NewUserError("no files found to import", common.ErrNotFound)
	}
	return files, nil
}
