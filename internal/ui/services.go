package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/argo/internal/wire"
)

// ConsumabilityBadge renders HUMAN or MACHINE as a small colored tag.
func ConsumabilityBadge(c wire.Consumability) string {
	if c == wire.HumanConsumable {
		return HumanBadgeStyle.Render("HUMAN")
	}
	return MachineBadgeStyle.Render("MACHINE")
}

// RenderService renders one service as a card: name and badge, id,
// contract, ttl, then one line per access point.
func RenderService(s wire.Service, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	name := s.ServiceName
	if name == "" {
		name = s.ID
	}

	lines := []string{
		ServiceNameStyle.Render(name) + "  " + ConsumabilityBadge(s.Consumability),
		ServiceIDStyle.Render(s.ID),
		ContractStyle.Render(s.ServiceContractID),
	}
	if s.Description != "" {
		lines = append(lines, StepNoteStyle.Render(s.Description))
	}
	if s.TTLMinutes > 0 {
		lines = append(lines, ServiceIDStyle.Render(fmt.Sprintf("ttl %dm", s.TTLMinutes)))
	}
	for _, ap := range s.AccessPoints {
		lines = append(lines, "  "+renderAccessPoint(ap))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimColor).
		Width(width-4).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

func renderAccessPoint(ap wire.AccessPoint) string {
	var parts []string
	if ap.Label != "" {
		parts = append(parts, ResultValueStyle.Render(ap.Label))
	}
	switch {
	case ap.URL != "":
		parts = append(parts, URLStyle.Render(ap.URL))
	case ap.IPAddress != "":
		parts = append(parts, ResultValueStyle.Render(fmt.Sprintf("%s:%d", ap.IPAddress, ap.Port)))
	}
	if ap.DataType != "" {
		parts = append(parts, StepNoteStyle.Render("("+ap.DataType+")"))
	}
	return strings.Join(parts, " ")
}

// RenderServices renders every service card, or a muted note when there
// are none.
func RenderServices(services []wire.Service, width int) string {
	if len(services) == 0 {
		return StepPendingStyle.Render("  No services found")
	}
	cards := make([]string, 0, len(services))
	for _, s := range services {
		cards = append(cards, RenderService(s, width))
	}
	return strings.Join(cards, "\n")
}

// ServiceRow is the compact single-line form used in tables.
func ServiceRow(s wire.Service) []string {
	url := ""
	if len(s.AccessPoints) > 0 {
		url = s.AccessPoints[0].URL
		if url == "" && s.AccessPoints[0].IPAddress != "" {
			url = fmt.Sprintf("%s:%d", s.AccessPoints[0].IPAddress, s.AccessPoints[0].Port)
		}
	}
	name := s.ServiceName
	if name == "" {
		name = s.ID
	}
	return []string{name, s.ServiceContractID, string(s.Consumability), url}
}
