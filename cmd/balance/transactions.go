package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Record and manage transactions",
	}

	cmd.AddCommand(txListCmd())
	cmd.AddCommand(txSubmitCmd(false))
	cmd.AddCommand(txSubmitCmd(true))
	cmd.AddCommand(txDeleteCmd())

	return cmd
}

func txListCmd() *cobra.Command {
	var accountID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest last",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			txs := l.Transactions()
			if accountID != "" {
				filtered := txs[:0]
				for _, t := range txs {
					if t.Touches(accountID) {
						filtered = append(filtered, t)
					}
				}
				txs = filtered
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[len(txs)-limit:]
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No transactions"))
				return nil
			}

			currency := l.Settings().Currency
			rows := make([][]string, 0, len(txs))
			for _, t := range txs {
				amount := t.Amount
				if t.Kind() == model.KindExpense || t.Kind() == model.KindCard {
					amount = amount.Neg()
				}
				rows = append(rows, []string{
					t.Date.Format("2006-01-02"),
					t.ID,
					string(t.Kind()),
					strings.Join(t.Effect.Accounts(), " → "),
					cli.StyleAmount(amount, currency),
					t.CategoryID,
					t.Note,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
				[]string{"Date", "ID", "Kind", "Accounts", "Amount", "Category", "Note"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "only show transactions touching this account")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many of the latest transactions")

	return cmd
}

func txSubmitCmd(isEdit bool) *cobra.Command {
	var (
		in   ledger.TransactionInput
		kind string
	)

	use, short := "add", "Record a transaction"
	args := cobra.NoArgs
	if isEdit {
		use, short = "edit <id>", "Replace a transaction"
		args = cobra.ExactArgs(1)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: `  balance tx add --kind expense --amount 12.50 --account acc-1 --category cat-food --note "Lunch"
  balance tx add --kind transfer --amount 200 --account acc-1 --to acc-2 --category cat-transfer`,
		Args: args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isEdit {
				in.ID = args[0]
			}
			in.Kind = model.TransactionKind(kind)
			if in.Datetime == "" {
				in.Datetime = time.Now().Format(time.RFC3339)
			}

			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			txn, err := l.SubmitTransaction(cmd.Context(), in, isEdit)
			if err != nil {
				return err
			}

			verb := "Recorded"
			if isEdit {
				verb = "Updated"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s %s of %s (%s, category %s)",
				verb, txn.Kind(), cli.FormatMoney(txn.Amount, l.Settings().Currency), txn.ID, txn.CategoryID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.KindExpense), "transaction kind (income, expense, transfer, card)")
	cmd.Flags().Float64Var(&in.Amount, "amount", 0, "amount, always positive")
	cmd.Flags().StringVar(&in.AccountFrom, "account", "", "account the transaction belongs to (source for transfers)")
	cmd.Flags().StringVar(&in.AccountTo, "to", "", "destination account for transfers")
	cmd.Flags().StringVar(&in.CategoryID, "category", "", "category id")
	cmd.Flags().StringVar(&in.Note, "note", "", "free-text note")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&in.AttachmentID, "attachment", "", "attachment id")
	cmd.Flags().StringVar(&in.Datetime, "date", "", "date and time (YYYY-MM-DD or RFC 3339, default now)")

	return cmd
}

func txDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and recompute balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Transaction deleted"))
			return nil
		},
	}
}
