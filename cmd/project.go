package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kanriapp/kanri/internal/models"
	"github.com/kanriapp/kanri/internal/output"
	"github.com/kanriapp/kanri/internal/store"
)

var (
	projectName string
	projectKey  string
	projectDesc string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new project",
	Long:  "Create a new project. The short key is derived from the name unless --key overrides it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun()
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use <project>",
	Short: "Set the default project for board and issue commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectUseRun(args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectName, "name", "", "Project name (required)")
	projectAddCmd.Flags().StringVar(&projectKey, "key", "", "Short key (derived from name when omitted)")
	projectAddCmd.Flags().StringVar(&projectDesc, "desc", "", "Project description")
	_ = projectAddCmd.MarkFlagRequired("name")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectUseCmd)
	rootCmd.AddCommand(projectCmd)
}

// newProjectStore builds and loads a project store for one command run.
func newProjectStore(ctx context.Context) *store.ProjectStore {
	projects := store.NewProjectStore(client, nil)
	projects.Load(ctx)
	if id := viper.GetString("project"); id != "" {
		projects.Select(id)
	}
	return projects
}

func projectListRun() error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	projects := newProjectStore(context.Background())
	list := projects.Projects()
	if len(list) == 0 {
		ui.Info("No projects yet. Create one with 'kanri project add --name <name>'.")
		return nil
	}

	selected := projects.Selected()

	table := ui.Table([]string{"", "Key", "Name", "Description", "ID"})
	for _, p := range list {
		marker := ""
		if selected != nil && p.ID == selected.ID {
			marker = output.Green("*")
		}
		_ = table.Append([]string{marker, output.Cyan(p.Key), p.Name, p.Description, shortID(p.ID)})
	}
	_ = table.Render()
	return nil
}

func projectAddRun() error {
	user, err := currentIdentity()
	if err != nil {
		return err
	}

	ctx := context.Background()
	projects := newProjectStore(ctx)

	p, err := projects.Create(ctx, store.CreateProjectInput{
		Name:        projectName,
		Key:         projectKey,
		Description: projectDesc,
		OwnerID:     user.ID,
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Created project %s %s", output.Cyan(p.Key), p.Name)
	return nil
}

func projectUseRun(ref string) error {
	if _, err := currentIdentity(); err != nil {
		return err
	}

	ctx := context.Background()
	projects := newProjectStore(ctx)

	p, err := resolveProject(projects, ref)
	if err != nil {
		return err
	}

	viper.Set("project", p.ID)
	if err := writeConfigValue("project", p.ID); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	ui.Success("Default project set to %s %s", output.Cyan(p.Key), p.Name)
	return nil
}

// resolveProject finds a project by key, name, or id prefix.
func resolveProject(projects *store.ProjectStore, ref string) (*models.Project, error) {
	for _, p := range projects.Projects() {
		if strings.EqualFold(p.Key, ref) || strings.EqualFold(p.Name, ref) || strings.HasPrefix(p.ID, strings.ToUpper(ref)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}
