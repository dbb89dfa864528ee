package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kanriapp/kanri/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent clients browse projects and issues and move cards on the
board through the signed-in session. Configure with:

  {
    "mcpServers": {
      "kanri": { "command": "kanri", "args": ["mcp"] }
    }
  }

Available tools: kanri_list_projects, kanri_create_project,
kanri_list_issues, kanri_create_issue, kanri_move_issue,
kanri_update_issue, kanri_board`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()

		srv := mcp.NewServer(client)
		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
