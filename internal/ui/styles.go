package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Argo palette. Adaptive colors keep text readable on light terminals.
var (
	BrandColor   = lipgloss.AdaptiveColor{Light: "#007A7A", Dark: "#2EC4B6"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#2E8540", Dark: "#43BF6D"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF5555"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B36B00", Dark: "#FFB347"}
	DimColor     = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F2F2F2"}
	AccentColor  = lipgloss.AdaptiveColor{Light: "#1F6FB2", Dark: "#5FAFFF"}
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 120
	DefaultPadding   = 2
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	// Header: title line, the command as typed, then aligned key/value params
	HeaderTitleStyle      = fg(BrandColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(DimColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(DimColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)

	StepCompleteStyle = fg(SuccessColor)
	StepRunningStyle  = fg(WarningColor)
	StepPendingStyle  = fg(DimColor)
	StepNoteStyle     = fg(DimColor).Italic(true)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)
	ResultKeyStyle    = fg(DimColor).Width(15)
	ResultValueStyle  = fg(TextColor)

	TroubleshootingTitleStyle = fg(DimColor).Bold(true)
	TroubleshootingItemStyle  = fg(DimColor)

	// Service cards
	ServiceNameStyle  = fg(TextColor).Bold(true)
	ServiceIDStyle    = fg(DimColor)
	ContractStyle     = fg(BrandColor)
	URLStyle          = fg(AccentColor).Underline(true)
	HumanBadgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#101010")).Background(SuccessColor).Padding(0, 1)
	MachineBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2F2F2")).Background(DimColor).Padding(0, 1)

	PayloadTitleStyle   = fg(DimColor).Bold(true)
	PayloadContentStyle = fg(TextColor)
)

// Step status markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

// GetTerminalWidth returns the stdout width clamped to
// [MinTerminalWidth, MaxContentWidth]. Pipes get the minimum.
func GetTerminalWidth() int {
	w, _ := GetTerminalSize()
	return w
}

// GetTerminalSize returns the clamped width and the raw height of stdout.
func GetTerminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	return clampWidth(w), h
}

func clampWidth(w int) int {
	return max(MinTerminalWidth, min(w, MaxContentWidth))
}

// HeaderBorderStyle frames command headers
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BrandColor).
		Width(width - 2)
}

// ResultBoxStyle frames a result box in the given accent color
func ResultBoxStyle(width int, color lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// PayloadBoxStyle frames raw probe and response bodies
func PayloadBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimColor).
		Width(width-4).
		Padding(0, 1)
}

// TroubleshootingBoxStyle frames the tips under a failed result. The box
// never gets narrower than 40 columns.
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3)
}

// RenderHorizontalDivider repeats char across width columns
func RenderHorizontalDivider(width int, char string) string {
	return fg(BrandColor).Render(strings.Repeat(char, width))
}
