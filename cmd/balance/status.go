package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show net worth, card bills and storage health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			currency := l.Settings().Currency
			summary := l.Summary()

			var b strings.Builder
			fmt.Fprintf(&b, "Net worth:   %s\n", cli.StyleAmount(summary.NetWorth, currency))
			fmt.Fprintf(&b, "Card bills:  %s\n", cli.StyleAmount(summary.CardBills.Neg(), currency))
			fmt.Fprintf(&b, "Available:   %s\n", cli.StyleAmount(summary.Available, currency))
			fmt.Fprintf(&b, "Accounts:    %d (%d cards)\n", summary.Accounts, summary.CardsCount)
			fmt.Fprintf(&b, "Transactions: %d", len(l.Transactions()))
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.BalanceIcon+" Balance", b.String()))

			st := l.Status()
			if st.PrimaryActive {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Storage: %s (%s)", st.Mode, appConfig.DatabasePath)))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("Storage: %s since %s: %s",
					st.Mode, st.Since.Format("15:04:05"), st.Reason)))
			}
			return nil
		},
	}
}
