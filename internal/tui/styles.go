package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/argo/internal/ui"
	"github.com/muurk/argo/internal/version"
)

// AppName is shown in the container header
const AppName = "ARGO SERVICE BROWSER"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72
	MaxContentWidth  = 120
)

// The browser shares the CLI palette
var (
	BorderColor    = ui.BrandColor
	HighlightColor = ui.SuccessColor
)

var (
	TitleStyle        = lipgloss.NewStyle().Foreground(ui.BrandColor).Bold(true).Padding(1, 0)
	SubtitleStyle     = lipgloss.NewStyle().Foreground(ui.DimColor).Italic(true)
	SelectedItemStyle = lipgloss.NewStyle().Foreground(HighlightColor).Bold(true)
	SpinnerStyle      = lipgloss.NewStyle().Foreground(ui.BrandColor)
	WarningStyle      = lipgloss.NewStyle().Foreground(ui.WarningColor).Bold(true)
	StatusStyle       = lipgloss.NewStyle().Foreground(ui.DimColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ErrorColor)
)

// RenderError renders an error message box
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// buildHeaderContent creates the header line with app name and version
func buildHeaderContent(status string) string {
	left := lipgloss.NewStyle().
		Foreground(ui.TextColor).
		Bold(true).
		Render(AppName + " v" + version.Version)
	if status == "" {
		return left
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", StatusStyle.Render(status))
}

// RenderApplicationContainer wraps a screen in the full-terminal frame:
// header on top, help text pinned to the bottom, content in between.
func RenderApplicationContainer(content, status, footerText string, width, height int) string {
	width = max(width, MinTerminalWidth)
	height = max(height, 10)

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Render(buildHeaderContent(status))

	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Render(lipgloss.NewStyle().Foreground(ui.DimColor).Render(footerText))

	body := lipgloss.NewStyle().Width(width - 4).Render(content)

	framed := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2).
		Height(height - 2).
		AlignVertical(lipgloss.Top).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, framed)
}
