package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pkt.systems/snippad/schema"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

func styleFor(class schema.Classification) lipgloss.Style {
	switch class {
	case schema.ClassSuccess:
		return successStyle
	case schema.ClassError:
		return errorStyle
	default:
		return infoStyle
	}
}

// renderResult styles run output by its classification.
func renderResult(result schema.RunResult) string {
	output := strings.TrimRight(result.Output, "\n")
	if output == "" {
		output = "(No output)"
	}
	return styleFor(result.Classification).Render(output)
}

// renderTable lays rows out in left-aligned columns under a bold header.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, cell := range header {
		widths[i] = lipgloss.Width(cell)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	renderRow := func(cells []string, style lipgloss.Style) string {
		out := make([]string, 0, len(cells))
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			out = append(out, cellStyle.Width(widths[i]+2).Render(style.Render(cell)))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}
	lines := []string{renderRow(header, headingStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}
