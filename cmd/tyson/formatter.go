package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/tyson/internal/session"
	"github.com/harunnryd/tyson/internal/transcript"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1)
	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))
)

func formatHistory(entries []transcript.Entry) string {
	if len(entries) == 0 {
		return "No history yet."
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle
		}).
		Headers("#", "Time", "Role", "Content")

	for i, e := range entries {
		content := e.Content
		if content == "" && len(e.ToolCalls) > 0 {
			names := make([]string, len(e.ToolCalls))
			for j, tc := range e.ToolCalls {
				names[j] = tc.Name
			}
			content = "[tool call: " + strings.Join(names, ", ") + "]"
		}
		t.Row(
			fmt.Sprintf("%d", i+1),
			e.Timestamp.Local().Format("15:04:05"),
			string(e.Role),
			truncateString(content, 60),
		)
	}
	return t.String()
}

func formatSessions(sessions []session.Meta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle
		}).
		Headers("ID", "Title", "Status", "Updated")

	for _, meta := range sessions {
		t.Row(
			meta.ID,
			truncateString(meta.Title, 30),
			meta.Status,
			meta.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	return t.String()
}

// truncateString cuts on rune boundaries so multibyte text never splits
// mid-character.
func truncateString(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
