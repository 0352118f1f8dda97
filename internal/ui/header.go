package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown in a header or result box. Params keep
// their order, unlike a map.
type Param struct {
	Key   string
	Value string
}

// Header is the banner printed before a command runs.
type Header struct {
	Title   string  // e.g., "Probe"
	Command string  // e.g., "argo probe --contract urn:example:printer"
	Params  []Param // e.g., {"Transport", "lan (multicast)"}
	Width   int
}

// NewHeader creates a header sized to the terminal
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the width for rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(top)
	}

	dividerWidth := width - 6
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		top,
		RenderHorizontalDivider(dividerWidth, "─"),
		renderParams(h.Params, HeaderParamKeyStyle, HeaderParamValueStyle, ""),
	)
	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// renderParams lays params out one per line with keys padded to align.
func renderParams(params []Param, keyStyle, valueStyle lipgloss.Style, indent string) string {
	keyWidth := 0
	for _, p := range params {
		if w := lipgloss.Width(p.Key); w > keyWidth {
			keyWidth = w
		}
	}
	lines := make([]string, 0, len(params))
	for _, p := range params {
		key := indent + p.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(p.Key))
		lines = append(lines, keyStyle.Render(key)+" "+valueStyle.Render(p.Value))
	}
	return strings.Join(lines, "\n")
}
