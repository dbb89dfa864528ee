package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kanriapp/kanri/internal/board"
	"github.com/kanriapp/kanri/internal/output"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the project board",
	Long:  "Show the four-column board for the current project.\nUse 'kanri tui' for the interactive board.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun()
	},
}

func init() {
	boardCmd.Flags().StringVar(&issueProject, "project", "", "Project key, name, or id (default: the selected project)")
	rootCmd.AddCommand(boardCmd)
}

func boardRun() error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	issues, p, err := newIssueStore(context.Background())
	if err != nil {
		return err
	}

	cols := board.Partition(issues.Issues())

	fmt.Fprintf(ui.Out, "%s %s\n\n", output.Cyan(p.Key), p.Name)

	headers := make([]string, len(cols))
	rows := 0
	for i, col := range cols {
		headers[i] = fmt.Sprintf("%s (%d)", col.Status.Label(), len(col.Issues))
		if len(col.Issues) > rows {
			rows = len(col.Issues)
		}
	}

	table := ui.Table(headers)
	for r := 0; r < rows; r++ {
		row := make([]string, len(cols))
		for c, col := range cols {
			if r < len(col.Issues) {
				issue := col.Issues[r]
				cell := fmt.Sprintf("%s %s", output.TypeBadge(issue.Type), issue.Title)
				if issue.Assignee != nil {
					cell += " @" + issue.Assignee.Initial()
				}
				row[c] = cell
			}
		}
		_ = table.Append(row)
	}
	_ = table.Render()
	return nil
}
