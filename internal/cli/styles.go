// Package cli holds the terminal presentation helpers shared by the balance
// commands: lipgloss styles, tables, progress and prompts.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	AccentColor = lipgloss.Color("#5B8C5A")
	IncomeColor = lipgloss.Color("#7BC950")
	DebtColor   = lipgloss.Color("#E4572E")
	NoticeColor = lipgloss.Color("#F3A712")
	MutedColor  = lipgloss.Color("#7A7A7A")
	RuleColor   = lipgloss.Color("#3A3A3A")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(AccentColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(IncomeColor)
	WarningStyle = lipgloss.NewStyle().Foreground(NoticeColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(DebtColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(AccentColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(MutedColor)

	// PromptStyle renders confirmation questions.
	PromptStyle = lipgloss.NewStyle().Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(RuleColor).
			Padding(1, 2)

	// TableHeaderStyle underlines the header row of RenderTable.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(RuleColor)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "!"
	InfoIcon    = "·"
	BalanceIcon = "⚖️"
)

func withIcon(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string { return withIcon(SuccessStyle, SuccessIcon, message) }

// FormatError prefixes message with a cross.
func FormatError(message string) string { return withIcon(ErrorStyle, ErrorIcon, message) }

func FormatWarning(message string) string { return withIcon(WarningStyle, WarningIcon, message) }

func FormatInfo(message string) string { return withIcon(InfoStyle, InfoIcon, message) }

// FormatTitle renders a section heading.
func FormatTitle(title string) string { return withIcon(TitleStyle, BalanceIcon, title) }

func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " ")
}

// RenderBox draws content inside a rounded border with title on the first line.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), content))
}

// RenderTable lays out rows under a header with padded columns.
func RenderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	render := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			out[i] = style.Width(w + 2).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}

	lines := []string{render(header, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, render(row, cell))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
