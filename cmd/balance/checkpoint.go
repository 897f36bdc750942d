package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-balance-must-flow/internal/cli"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage database checkpoints",
		Long: `Create and list database checkpoints.

Checkpoints are copies of the SQLite database. One is taken automatically
before an overwrite import or a reset. Checkpoints are unavailable while the
ledger runs on fallback storage.`,
		Example: `  # Create a checkpoint before a risky change
  balance checkpoint create --tag "before-cleanup"

  # List all checkpoints
  balance checkpoint list`,
	}

	cmd.AddCommand(createCheckpointCmd())
	cmd.AddCommand(listCheckpointsCmd())

	return cmd
}

func createCheckpointCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			info, err := l.Checkpoint(cmd.Context(), tag)
			if errors.Is(err, storage.ErrCheckpointUnavailable) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Checkpoints are unavailable on fallback storage"))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to create checkpoint: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Created checkpoint %s (%s)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Checkpoint tag/name (auto-generated if not provided)")

	return cmd
}

func listCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, closeLedger, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLedger()

			checkpoints, err := l.Checkpoints()
			if errors.Is(err, storage.ErrCheckpointUnavailable) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Checkpoints are unavailable on fallback storage"))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}

			if len(checkpoints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No checkpoints found."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
			fmt.Fprintln(w, strings.Join([]string{
				headerStyle.Render("NAME"),
				headerStyle.Render("CREATED"),
				headerStyle.Render("SIZE"),
				headerStyle.Render("TYPE"),
			}, "\t"))

			for _, cp := range checkpoints {
				typeLabel := "manual"
				if cp.IsAuto {
					typeLabel = "auto"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					cli.InfoStyle.Render(cp.ID),
					formatRelativeTime(cp.CreatedAt),
					formatFileSize(cp.FileSize),
					cli.SubtleStyle.Render(typeLabel),
				)
			}

			return w.Flush()
		},
	}
}
