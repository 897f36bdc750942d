package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/rules"
	"github.com/Veraticus/the-balance-must-flow/internal/service"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorisation rules",
		Long: `Rules assign a category to new transactions whose note contains a substring.
The highest-priority enabled rule wins; rules never rewrite existing transactions.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			list := l.Rules()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No rules"))
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, r := range list {
				rows = append(rows, []string{
					r.ID, r.Contains, r.CategoryID, strconv.Itoa(r.Priority), strconv.FormatBool(r.IsEnabled()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Contains", "Category", "Priority", "Enabled"}, rows))
			return nil
		},
	})

	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesSuggestCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			if err := l.DeleteRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Rule deleted"))
			return nil
		},
	})

	return cmd
}

func rulesAddCmd() *cobra.Command {
	var (
		in       service.RuleInput
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add <contains>",
		Short: "Add a rule matching notes that contain the given text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Contains = args[0]
			if disabled {
				enabled := false
				in.Enabled = &enabled
			}

			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			rule, err := l.AddRule(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added rule %s: %q → %s", rule.ID, rule.Contains, rule.CategoryID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.CategoryID, "category", "", "category to assign")
	cmd.Flags().IntVar(&in.Priority, "priority", 0, "priority, higher wins")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the rule disabled")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesSuggestCmd() *cobra.Command {
	var minOccurrences int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest rules from notes that keep getting the same category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			suggestions := l.SuggestRules(minOccurrences)
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No suggestions"))
				return nil
			}
			rows := make([][]string, 0, len(suggestions))
			for _, s := range suggestions {
				rows = append(rows, []string{
					s.Contains, s.CategoryID, strconv.Itoa(s.Matches), fmt.Sprintf("%.0f%%", s.Confidence*100),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Contains", "Category", "Matches", "Confidence"}, rows))
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Add one with 'balance rules add <contains> --category <id>'"))
			return nil
		},
	}

	cmd.Flags().IntVar(&minOccurrences, "min", rules.DefaultMinOccurrences, "minimum number of matching transactions")
	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			categories := l.Categories()
			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{c.ID, c.Icon + " " + c.Name, string(c.Kind)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Kind"}, rows))
			return nil
		},
	}
}
