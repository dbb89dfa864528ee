package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanriapp/kanri/internal/board"
	"github.com/kanriapp/kanri/internal/models"
	"github.com/kanriapp/kanri/internal/output"
	"github.com/kanriapp/kanri/internal/store"
)

var (
	issueTitle    string
	issueDesc     string
	issuePriority string
	issueType     string
	issueProject  string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Track stories, bugs, tasks, and epics for your projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues in the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new issue (always starts in todo)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <issue-id> <status>",
	Short: "Move an issue to another board column",
	Long:  "Move an issue to another column: todo, in_progress, in_review, or done.\nAny column-to-column move is allowed.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(args[0], args[1])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "medium", "Priority: lowest, low, medium, high, highest")
	issueAddCmd.Flags().StringVar(&issueType, "type", "task", "Type: story, bug, task, epic")
	_ = issueAddCmd.MarkFlagRequired("title")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueType, "type", "", "New type")

	for _, c := range []*cobra.Command{issueListCmd, issueAddCmd, issueShowCmd, issueMoveCmd, issueUpdateCmd} {
		c.Flags().StringVar(&issueProject, "project", "", "Project key, name, or id (default: the selected project)")
	}

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueMoveCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	rootCmd.AddCommand(issueCmd)
}

// newIssueStore resolves the working project and returns a loaded issue
// store bound to it.
func newIssueStore(ctx context.Context) (*store.IssueStore, *models.Project, error) {
	projects := newProjectStore(ctx)

	var p *models.Project
	if issueProject != "" {
		var err error
		p, err = resolveProject(projects, issueProject)
		if err != nil {
			return nil, nil, err
		}
	} else {
		p = projects.Selected()
		if p == nil {
			return nil, nil, fmt.Errorf("no projects yet (run 'kanri project add' first)")
		}
	}

	issues := store.NewIssueStore(client, nil, p.ID)
	issues.Load(ctx)
	return issues, p, nil
}

func issueListRun() error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	issues, p, err := newIssueStore(context.Background())
	if err != nil {
		return err
	}

	list := issues.Issues()
	if len(list) == 0 {
		ui.Info("No issues in %s.", p.Name)
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Type", "Status", "Priority", "Assignee"})
	for _, i := range list {
		_ = table.Append([]string{
			shortID(i.ID),
			i.Title,
			output.TypeBadge(i.Type),
			output.StatusColor(i.Status),
			output.PriorityColor(i.Priority),
			i.Assignee.DisplayName(),
		})
	}
	_ = table.Render()
	return nil
}

func issueAddRun() error {
	user, err := currentIdentity()
	if err != nil {
		return err
	}

	typ := models.IssueType(issueType)
	if !typ.Valid() {
		return fmt.Errorf("invalid type %q (story, bug, task, epic)", issueType)
	}
	prio := models.IssuePriority(issuePriority)
	if !prio.Valid() {
		return fmt.Errorf("invalid priority %q (lowest, low, medium, high, highest)", issuePriority)
	}

	ctx := context.Background()
	issues, p, err := newIssueStore(ctx)
	if err != nil {
		return err
	}

	issue, err := issues.Create(ctx, store.CreateIssueInput{
		Title:       issueTitle,
		Description: issueDesc,
		Type:        typ,
		Priority:    prio,
	}, user.ID)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created issue %s in %s: %s", output.Cyan(shortID(issue.ID)), p.Key, issue.Title)
	return nil
}

func issueShowRun(ref string) error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	ctx := context.Background()
	issues, p, err := newIssueStore(ctx)
	if err != nil {
		return err
	}

	issue, err := findIssue(issues, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Project:   %s (%s)\n", p.Name, p.Key)
	fmt.Fprintf(ui.Out, "  Type:      %s\n", output.TypeBadge(issue.Type))
	fmt.Fprintf(ui.Out, "  Status:    %s\n", output.StatusColor(issue.Status))
	fmt.Fprintf(ui.Out, "  Priority:  %s\n", output.PriorityColor(issue.Priority))
	if issue.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:      %s\n", issue.Description)
	}
	if issue.Assignee != nil {
		fmt.Fprintf(ui.Out, "  Assignee:  %s\n", issue.Assignee.DisplayName())
	}
	if issue.Reporter != nil {
		fmt.Fprintf(ui.Out, "  Reporter:  %s\n", issue.Reporter.DisplayName())
	}
	fmt.Fprintf(ui.Out, "  Created:   %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:   %s\n", issue.ID)
	return nil
}

func issueMoveRun(ref, statusArg string) error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	target := models.IssueStatus(statusArg)
	if !target.Valid() {
		return fmt.Errorf("invalid status %q (todo, in_progress, in_review, done)", statusArg)
	}

	ctx := context.Background()
	issues, _, err := newIssueStore(ctx)
	if err != nil {
		return err
	}

	issue, err := findIssue(issues, ref)
	if err != nil {
		return err
	}

	moved, err := board.Drop(ctx, issues, issue.ID, target)
	if err != nil {
		return fmt.Errorf("move issue: %w", err)
	}

	ui.Success("Moved %s to %s", output.Cyan(shortID(moved.ID)), output.StatusColor(moved.Status))
	return nil
}

func issueUpdateRun(ref string) error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	patch := map[string]any{}
	if issueTitle != "" {
		patch["title"] = issueTitle
	}
	if issueDesc != "" {
		patch["description"] = issueDesc
	}
	if issuePriority != "" {
		if !models.IssuePriority(issuePriority).Valid() {
			return fmt.Errorf("invalid priority %q", issuePriority)
		}
		patch["priority"] = issuePriority
	}
	if issueType != "" {
		if !models.IssueType(issueType).Valid() {
			return fmt.Errorf("invalid type %q", issueType)
		}
		patch["type"] = issueType
	}
	if len(patch) == 0 {
		return fmt.Errorf("no updates specified (use --title, --desc, --priority, or --type)")
	}

	ctx := context.Background()
	issues, _, err := newIssueStore(ctx)
	if err != nil {
		return err
	}

	issue, err := findIssue(issues, ref)
	if err != nil {
		return err
	}

	updated, err := issues.Update(ctx, issue.ID, patch)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	ui.Success("Updated issue %s", output.Cyan(shortID(updated.ID)))
	return nil
}

// findIssue finds an issue in the loaded list by full id or prefix.
func findIssue(issues *store.IssueStore, ref string) (*models.Issue, error) {
	upper := strings.ToUpper(ref)

	var matches []*models.Issue
	for _, i := range issues.Issues() {
		if i.ID == upper {
			return i, nil
		}
		if strings.HasPrefix(i.ID, upper) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", ref, len(matches))
	}
}
