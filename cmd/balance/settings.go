package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
)

func settingsCmd() *cobra.Command {
	var (
		currency, theme string
		monthStartDay   int
		reduceMotion    bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change ledger settings",
		Example: `  balance settings
  balance settings --currency EUR --month-start-day 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var u service.SettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("currency") {
				u.Currency = &currency
			}
			if flags.Changed("month-start-day") {
				u.MonthStartDay = &monthStartDay
			}
			if flags.Changed("theme") {
				u.Theme = &theme
			}
			if flags.Changed("reduce-motion") {
				u.ReduceMotion = &reduceMotion
			}

			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			s := l.Settings()
			if u != (service.SettingsUpdate{}) {
				if s, err = l.UpdateSettings(cmd.Context(), u); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Settings updated"))
			}

			pin := "off"
			if s.HasPIN() {
				pin = "on"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Setting", "Value"}, [][]string{
				{"currency", s.Currency},
				{"month start day", fmt.Sprint(s.MonthStartDay)},
				{"theme", s.Theme},
				{"reduce motion", fmt.Sprint(s.ReduceMotion)},
				{"pin", pin},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	cmd.Flags().IntVar(&monthStartDay, "month-start-day", 1, "day the budgeting month starts (1-28)")
	cmd.Flags().StringVar(&theme, "theme", "", "theme (system, light, dark)")
	cmd.Flags().BoolVar(&reduceMotion, "reduce-motion", false, "reduce UI animations")

	return cmd
}

func pinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the local PIN guarding the HTTP API",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <pin>",
		Short: "Set or replace the PIN (4 to 12 digits)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.SetPIN(cmd.Context(), args[0]); err != nil {
				return common.NewUserError("could not set PIN", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PIN set"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <current-pin>",
		Short: "Remove the PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.ClearPIN(cmd.Context(), args[0]); err != nil {
				return common.NewUserError("could not clear PIN", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PIN cleared"))
			return nil
		},
	})

	return cmd
}
