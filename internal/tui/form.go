package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kanriapp/kanri/internal/models"
	"github.com/kanriapp/kanri/internal/store"
)

// createForm collects the fields for a new issue. It only ever creates
// into todo, matching the board's single create affordance.
type createForm struct {
	inputs  []textinput.Model
	focused int
	err     string
}

const (
	fieldTitle = iota
	fieldDescription
	fieldType
	fieldPriority
	fieldCount
)

func newCreateForm() createForm {
	inputs := make([]textinput.Model, fieldCount)

	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 200
	inputs[fieldTitle] = title

	desc := textinput.New()
	desc.Placeholder = "Description (optional)"
	desc.CharLimit = 2000
	inputs[fieldDescription] = desc

	typ := textinput.New()
	typ.Placeholder = "task"
	typ.Prompt = "> "
	inputs[fieldType] = typ

	prio := textinput.New()
	prio.Placeholder = "medium"
	prio.Prompt = "> "
	inputs[fieldPriority] = prio

	return createForm{inputs: inputs}
}

func (f *createForm) focusFirst() {
	f.focused = fieldTitle
	f.syncFocus()
}

func (f *createForm) focusNext() {
	f.focused = (f.focused + 1) % fieldCount
	f.syncFocus()
}

func (f *createForm) focusPrev() {
	f.focused = (f.focused + fieldCount - 1) % fieldCount
	f.syncFocus()
}

func (f *createForm) syncFocus() {
	for i := range f.inputs {
		if i == f.focused {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

func (f createForm) update(msg tea.KeyMsg) (createForm, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return f, cmd
}

// input validates the form and returns the create shape.
func (f createForm) input() (store.CreateIssueInput, error) {
	title := strings.TrimSpace(f.inputs[fieldTitle].Value())
	if title == "" {
		return store.CreateIssueInput{}, fmt.Errorf("title is required")
	}

	issueType := models.IssueType(strings.TrimSpace(f.inputs[fieldType].Value()))
	if issueType == "" {
		issueType = models.IssueTypeTask
	}
	if !issueType.Valid() {
		return store.CreateIssueInput{}, fmt.Errorf("invalid type %q (story, bug, task, epic)", issueType)
	}

	priority := models.IssuePriority(strings.TrimSpace(f.inputs[fieldPriority].Value()))
	if priority == "" {
		priority = models.IssuePriorityMedium
	}
	if !priority.Valid() {
		return store.CreateIssueInput{}, fmt.Errorf("invalid priority %q (lowest, low, medium, high, highest)", priority)
	}

	return store.CreateIssueInput{
		Title:       title,
		Description: strings.TrimSpace(f.inputs[fieldDescription].Value()),
		Type:        issueType,
		Priority:    priority,
	}, nil
}

var formLabelStyle = lipgloss.NewStyle().Faint(true)

func (f createForm) view(width int) string {
	labels := []string{"Title", "Description", "Type (story/bug/task/epic)", "Priority (lowest..highest)"}

	var b strings.Builder
	b.WriteString(headerStyle.Render("New issue") + "\n\n")
	for i, in := range f.inputs {
		b.WriteString(formLabelStyle.Render(labels[i]) + "\n")
		b.WriteString(in.View() + "\n\n")
	}
	if f.err != "" {
		b.WriteString(statusStyle.Render(f.err) + "\n")
	}
	b.WriteString(helpStyle.Render("enter save  tab next field  esc cancel"))
	return lipgloss.NewStyle().Padding(1, 2).MaxWidth(width).Render(b.String())
}
