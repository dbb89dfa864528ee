package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kanriapp/kanri/internal/board"
	"github.com/kanriapp/kanri/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	colHeaderStyle         = lipgloss.NewStyle().Bold(true).Underline(true)
	colHeaderSelectedStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("212"))

	cardStyle         = lipgloss.NewStyle().Padding(0, 1)
	cardSelectedStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))

	mutedStyle  = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Padding(0, 1)
)

// selection identifies the focused card. IssueID is the stable handle;
// after a reload or a move the indices are re-derived from it so focus
// follows the card across columns.
type selection struct {
	Col     int
	Issue   int
	IssueID string
}

func indexOfIssueID(cols []board.Column, id string) (int, int, bool) {
	if id == "" {
		return 0, 0, false
	}
	for ci := range cols {
		for ii := range cols[ci].Issues {
			if cols[ci].Issues[ii].ID == id {
				return ci, ii, true
			}
		}
	}
	return 0, 0, false
}

// clamp normalizes a selection against the current columns, preferring
// the stable issue id over raw indices.
func clamp(cols []board.Column, sel selection) selection {
	if len(cols) == 0 {
		return selection{Col: 0, Issue: -1}
	}

	if ci, ii, ok := indexOfIssueID(cols, sel.IssueID); ok {
		sel.Col = ci
		sel.Issue = ii
	} else {
		sel.IssueID = ""
	}

	if sel.Col < 0 {
		sel.Col = 0
	}
	if sel.Col >= len(cols) {
		sel.Col = len(cols) - 1
	}

	n := len(cols[sel.Col].Issues)
	if n == 0 {
		sel.Issue = -1
		return sel
	}
	if sel.Issue < 0 {
		sel.Issue = 0
	}
	if sel.Issue >= n {
		sel.Issue = n - 1
	}
	sel.IssueID = cols[sel.Col].Issues[sel.Issue].ID
	return sel
}

func selectedIssue(cols []board.Column, sel selection) (*models.Issue, bool) {
	sel = clamp(cols, sel)
	if sel.Col < 0 || sel.Col >= len(cols) {
		return nil, false
	}
	if sel.Issue < 0 || sel.Issue >= len(cols[sel.Col].Issues) {
		return nil, false
	}
	return cols[sel.Col].Issues[sel.Issue], true
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w == 1 {
		return "…"
	}
	return string(r[:w-1]) + "…"
}

func renderBoard(cols []board.Column, sel selection, width, height int) string {
	n := len(cols)
	if n == 0 || width <= 0 {
		return ""
	}
	sel = clamp(cols, sel)

	gap := 2
	colW := (width - gap*(n-1)) / n
	if colW < 12 {
		colW = 12
	}
	innerW := colW - 2

	rendered := make([]string, 0, n)
	for ci, col := range cols {
		lines := make([]string, 0, len(col.Issues)*2+2)

		head := truncate(fmt.Sprintf("%s (%d)", col.Status.Label(), len(col.Issues)), colW)
		hs := colHeaderStyle
		if ci == sel.Col {
			hs = colHeaderSelectedStyle
		}
		lines = append(lines, hs.Render(head), "")

		if len(col.Issues) == 0 {
			lines = append(lines, mutedStyle.Render(" (empty)"))
		}
		for ii, issue := range col.Issues {
			text := truncate(fmt.Sprintf("%s %s", issue.Type, issue.Title), innerW)
			st := cardStyle
			if ci == sel.Col && ii == sel.Issue {
				st = cardSelectedStyle
			}
			lines = append(lines, st.Width(colW).Render(text))
			meta := string(issue.Priority)
			if issue.Assignee != nil {
				meta += "  @" + issue.Assignee.Initial()
			}
			lines = append(lines, mutedStyle.Render(" "+truncate(meta, innerW)))
		}

		if board.CanCreateIn(col.Status) {
			lines = append(lines, "", mutedStyle.Render(" + new issue (n)"))
		}

		colBody := lipgloss.NewStyle().Width(colW).Height(height).Render(strings.Join(lines, "\n"))
		rendered = append(rendered, colBody)
	}

	out := rendered[0]
	sep := strings.Repeat(" ", gap)
	for i := 1; i < len(rendered); i++ {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, rendered[i])
	}
	return out
}
