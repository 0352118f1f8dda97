package ui

import (
	"fmt"
	"strings"
)

// PayloadBox shows a raw encoded probe or response body in verbose mode.
type PayloadBox struct {
	Title    string // e.g., "Probe (XML)"
	Lines    []string
	Width    int
	MaxLines int // 0 = unlimited
}

// NewPayloadBox creates a box for body, split into lines
func NewPayloadBox(title string, body []byte) *PayloadBox {
	content := strings.TrimRight(string(body), "\n")
	return &PayloadBox{
		Title: title,
		Lines: strings.Split(content, "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the width for rendering
func (p *PayloadBox) SetWidth(width int) *PayloadBox {
	p.Width = width
	return p
}

// SetMaxLines limits the number of lines displayed
func (p *PayloadBox) SetMaxLines(max int) *PayloadBox {
	p.MaxLines = max
	return p
}

// Render returns the styled box. Lines past MaxLines are replaced by a
// count of what was cut.
func (p *PayloadBox) Render() string {
	width := p.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := p.Lines
	hidden := 0
	if p.MaxLines > 0 && len(lines) > p.MaxLines {
		hidden = len(lines) - p.MaxLines
		lines = lines[:p.MaxLines]
	}

	body := PayloadContentStyle.Render(strings.Join(lines, "\n"))
	if hidden > 0 {
		body += "\n" + StepNoteStyle.Render(fmt.Sprintf("... %d more lines", hidden))
	}
	return PayloadBoxStyle(width).Render(PayloadTitleStyle.Render(p.Title) + "\n" + body)
}

// String implements fmt.Stringer
func (p *PayloadBox) String() string {
	return p.Render()
}
