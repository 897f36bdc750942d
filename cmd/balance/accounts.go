package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account", "acct"},
		Short:   "Manage accounts",
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsAddCmd())
	cmd.AddCommand(accountsEditCmd())
	cmd.AddCommand(accountsDeleteCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their current balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			accounts := l.Accounts()
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No accounts yet. Add one with 'balance accounts add'."))
				return nil
			}

			currency := l.Settings().Currency
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				bill := ""
				if a.IsCard() {
					bill = cli.StyleAmount(a.CardBill.Neg(), currency)
				}
				rows = append(rows, []string{
					a.ID,
					a.Name,
					string(a.Kind),
					cli.StyleAmount(a.Balance, currency),
					bill,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("%s Accounts", cli.BalanceIcon)))
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Kind", "Balance", "Card bill"}, rows))
			return nil
		},
	}
}

func accountsAddCmd() *cobra.Command {
	var in ledger.AccountInput
	var kind string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			in.Name = args[0]
			in.Kind = model.AccountKind(kind)
			acc, err := l.CreateAccount(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s account %q (%s)", acc.Kind, acc.Name, acc.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.AccountBank), "account kind (wallet, bank, investment, card)")
	cmd.Flags().Float64Var(&in.InitialBalance, "initial", 0, "initial balance")
	cmd.Flags().StringVar(&in.Color, "color", "", "display color")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "display icon")

	return cmd
}

func accountsEditCmd() *cobra.Command {
	var (
		name, kind, color, icon string
		balance                 float64
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an account's name, kind or appearance",
		Long: `Edit an account. --balance sets a manual balance override that lasts until
the next change to the transaction log recomputes every balance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit service.AccountEdit
			flags := cmd.Flags()
			if flags.Changed("name") {
				edit.Name = &name
			}
			if flags.Changed("kind") {
				k := model.AccountKind(kind)
				edit.Kind = &k
			}
			if flags.Changed("color") {
				edit.Color = &color
			}
			if flags.Changed("icon") {
				edit.Icon = &icon
			}
			if flags.Changed("balance") {
				edit.Balance = &balance
			}

			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			acc, err := l.EditAccount(cmd.Context(), args[0], edit)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated account %q", acc.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&kind, "kind", "", "new kind")
	cmd.Flags().StringVar(&color, "color", "", "new color")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	cmd.Flags().Float64Var(&balance, "balance", 0, "manual balance override")

	return cmd
}

func accountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account that no transaction references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.DeleteAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Account deleted"))
			return nil
		},
	}
}
