package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanriapp/kanri/internal/store"
	"github.com/kanriapp/kanri/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive board",
	Long: `Open the board as a full-screen terminal app.

Move the selection with the arrow keys, drag the selected card to the
neighboring column with [ and ], create a new issue from the todo
column with n, and cycle projects with tab.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tuiRun()
	},
}

func init() {
	tuiCmd.Flags().StringVar(&issueProject, "project", "", "Project key, name, or id (default: the selected project)")
	rootCmd.AddCommand(tuiCmd)
}

func tuiRun() error {
	user, err := currentIdentity()
	if err != nil {
		return err
	}

	ctx := context.Background()
	projects := newProjectStore(ctx)

	if issueProject != "" {
		p, err := resolveProject(projects, issueProject)
		if err != nil {
			return err
		}
		projects.Select(p.ID)
	}
	p := projects.Selected()
	if p == nil {
		return fmt.Errorf("no projects yet (run 'kanri project add' first)")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	issues := store.NewIssueStore(client, log, p.ID)
	issues.Load(ctx)

	return tui.Run(projects, issues, user, log)
}
