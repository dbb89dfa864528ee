// Package tui renders the board as an interactive terminal app: four
// status columns, card selection, keyboard drag-and-drop, and a create
// form on the todo column.
package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kanriapp/kanri/internal/board"
	"github.com/kanriapp/kanri/internal/models"
	"github.com/kanriapp/kanri/internal/store"
)

type mode int

const (
	modeBoard mode = iota
	modeCreate
)

// Model is the Bubble Tea model for the board view.
type Model struct {
	projects *store.ProjectStore
	issues   *store.IssueStore
	log      *slog.Logger

	identity *models.Identity

	cols []board.Column
	sel  selection

	mode mode
	form createForm

	width  int
	height int
	status string
}

// messages

type issuesReloadedMsg struct{}
type projectsReloadedMsg struct{}
type issueMovedMsg struct{ err error }
type issueCreatedMsg struct{ err error }

// New builds the model. The project store should already be loaded and
// carry a selection; the issue store follows it.
func New(projects *store.ProjectStore, issues *store.IssueStore, identity *models.Identity, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	m := Model{
		projects: projects,
		issues:   issues,
		identity: identity,
		log:      log,
		form:     newCreateForm(),
	}
	m.rebuild()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(projects *store.ProjectStore, issues *store.IssueStore, identity *models.Identity, log *slog.Logger) error {
	p := tea.NewProgram(New(projects, issues, identity, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.reloadIssues()
}

// rebuild recomputes the columns from the issue store and clamps the
// selection so it stays on the same card where possible.
func (m *Model) rebuild() {
	m.cols = board.Partition(m.issues.Issues())
	m.sel = clamp(m.cols, m.sel)
}

func (m Model) reloadIssues() tea.Cmd {
	issues := m.issues
	return func() tea.Msg {
		issues.Refetch(context.Background())
		return issuesReloadedMsg{}
	}
}

func (m Model) reloadProjects() tea.Cmd {
	projects := m.projects
	return func() tea.Msg {
		projects.Refetch(context.Background())
		return projectsReloadedMsg{}
	}
}

func (m Model) moveSelected(target models.IssueStatus) tea.Cmd {
	issue, ok := selectedIssue(m.cols, m.sel)
	if !ok {
		return nil
	}
	issues := m.issues
	id := issue.ID
	return func() tea.Msg {
		_, err := board.Drop(context.Background(), issues, id, target)
		return issueMovedMsg{err: err}
	}
}

func (m Model) createIssue(in store.CreateIssueInput) tea.Cmd {
	issues := m.issues
	reporterID := ""
	if m.identity != nil {
		reporterID = m.identity.ID
	}
	return func() tea.Msg {
		_, err := issues.Create(context.Background(), in, reporterID)
		return issueCreatedMsg{err: err}
	}
}

// cycleProject moves the project selection forward (or backward) and
// repoints the issue store, which clears the list and starts a fresh load.
func (m *Model) cycleProject(delta int) tea.Cmd {
	ps := m.projects.Projects()
	if len(ps) < 2 {
		return nil
	}
	cur := m.projects.Selected()
	idx := 0
	for i, p := range ps {
		if cur != nil && p.ID == cur.ID {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(ps)) % len(ps)
	m.projects.Select(ps[idx].ID)
	if m.issues.SetProject(ps[idx].ID) {
		m.sel = selection{}
		m.rebuild()
		return m.reloadIssues()
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case issuesReloadedMsg:
		m.rebuild()
		return m, nil

	case projectsReloadedMsg:
		return m, nil

	case issueMovedMsg:
		if msg.err != nil {
			m.log.Error("move issue", "err", msg.err)
			m.status = "move failed: " + msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.rebuild()
		return m, nil

	case issueCreatedMsg:
		if msg.err != nil {
			m.log.Error("create issue", "err", msg.err)
			m.status = "create failed: " + msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeCreate {
			return m.updateCreate(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "left", "h":
		m.sel = clamp(m.cols, selection{Col: m.sel.Col - 1})
		return m, nil
	case "right", "l":
		m.sel = clamp(m.cols, selection{Col: m.sel.Col + 1})
		return m, nil
	case "up", "k":
		m.sel.Issue--
		m.sel.IssueID = ""
		m.sel = clamp(m.cols, m.sel)
		return m, nil
	case "down", "j":
		m.sel.Issue++
		m.sel.IssueID = ""
		m.sel = clamp(m.cols, m.sel)
		return m, nil

	case "shift+left", "H", "[":
		if m.sel.Col > 0 {
			return m, m.moveSelected(m.cols[m.sel.Col-1].Status)
		}
		return m, nil
	case "shift+right", "L", "]":
		if m.sel.Col < len(m.cols)-1 {
			return m, m.moveSelected(m.cols[m.sel.Col+1].Status)
		}
		return m, nil

	case "n":
		// The create affordance lives on the todo column only.
		if len(m.cols) > 0 && board.CanCreateIn(m.cols[m.sel.Col].Status) {
			m.mode = modeCreate
			m.form = newCreateForm()
			m.form.focusFirst()
		}
		return m, nil

	case "tab":
		return m, m.cycleProject(1)
	case "shift+tab":
		return m, m.cycleProject(-1)

	case "r":
		m.status = ""
		return m, tea.Batch(m.reloadIssues(), m.reloadProjects())
	}
	return m, nil
}

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBoard
		return m, nil
	case "enter":
		in, err := m.form.input()
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.mode = modeBoard
		return m, m.createIssue(in)
	case "tab", "down":
		m.form.focusNext()
		return m, nil
	case "shift+tab", "up":
		m.form.focusPrev()
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.mode == modeCreate {
		return m.form.view(m.width)
	}

	header := m.headerView()
	body := renderBoard(m.cols, m.sel, m.width, m.height-lipgloss.Height(header)-1)
	footer := m.footerView()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) headerView() string {
	p := m.projects.Selected()
	title := "(no project)"
	if p != nil {
		title = p.Key + "  " + p.Name
	}
	if m.issues.Loading() {
		title += "  loading…"
	}
	return headerStyle.Render(title)
}

func (m Model) footerView() string {
	help := "←/→ column  ↑/↓ card  [/] move card  n new  tab project  r refresh  q quit"
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	return helpStyle.Render(help)
}
