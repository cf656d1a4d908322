package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func renderTable(headers []string, rows [][]string) string {
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(styled...).
		Rows(rows...).
		Render()
}

// completionBar renders a ten cell bar followed by the percentage.
func completionBar(pct int) string {
	filled := max(0, min(10, pct/10))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)

	style := warnStyle
	if pct == 100 {
		style = okStyle
	}
	return style.Render(bar) + fmt.Sprintf(" %3d%%", pct)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return dimStyle.Render("never")
	}
	return t.Local().Format("2006-01-02 15:04")
}
