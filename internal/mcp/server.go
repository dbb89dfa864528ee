// Package mcp exposes the kanri backend as MCP tools over stdio, so
// agent clients can browse and mutate the board alongside the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/board"
	"github.com/kanriapp/kanri/internal/models"
)

// Server wraps the backend client and exposes it as MCP tools.
type Server struct {
	client *backend.Client
}

// NewServer creates the MCP server wrapper. The client must already carry
// a restored session; tools that write fail without one.
func NewServer(c *backend.Client) *Server {
	return &Server{client: c}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kanri", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.createProjectTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.boardTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// identity returns the signed-in user or an error suitable for a tool result.
func (s *Server) identity() (*models.Identity, error) {
	sess := s.client.CurrentSession()
	if sess == nil || sess.User == nil {
		return nil, fmt.Errorf("not signed in; run 'kanri auth login' first")
	}
	return sess.User, nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// kanri_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array with id, key, name, and description, newest first."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID          string `json:"id"`
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		CreatedAt   string `json:"created_at"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{
			ID:          p.ID,
			Key:         p.Key,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_create_project
func (s *Server) createProjectTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_create_project",
		mcp.WithDescription("Create a new project. The key defaults to the first four alphanumerics of the name, uppercased. Returns the created project as JSON."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("key", mcp.Description("Short uppercase key, 2-10 alphanumerics (derived from name if omitted)")),
		mcp.WithString("description", mcp.Description("Project description")),
	)
	return tool, s.handleCreateProject
}

func (s *Server) handleCreateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	user, err := s.identity()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	key := request.GetString("key", "")
	if key == "" {
		key = models.DeriveProjectKey(name)
	}
	if err := models.ValidateProjectKey(key); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.client.InsertProject(ctx, backend.NewProject{
		Name:        name,
		Key:         key,
		Description: request.GetString("description", ""),
		OwnerID:     user.ID,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create project: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]any{
		"id":   p.ID,
		"key":  p.Key,
		"name": p.Name,
	})
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_list_issues",
		mcp.WithDescription("List the issues of a project, newest first. Each issue has id, title, description, type (story/bug/task/epic), status (todo/in_progress/in_review/done), priority (lowest/low/medium/high/highest), and assignee/reporter names."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key, name, or id")),
		mcp.WithString("status", mcp.Description("Status filter: todo, in_progress, in_review, done")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issues, err := s.client.ListIssues(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	if status := request.GetString("status", ""); status != "" {
		filtered := issues[:0]
		for _, issue := range issues {
			if issue.Status == models.IssueStatus(status) {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}

	data, err := json.Marshal(issuesOut(issues))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_create_issue",
		mcp.WithDescription("Create a new issue in a project. New issues always start in the todo column with the caller as reporter and no assignee. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key, name, or id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("type", mcp.Description("Issue type: story, bug, task, epic (default: task)")),
		mcp.WithString("priority", mcp.Description("Priority: lowest, low, medium, high, highest (default: medium)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	user, err := s.identity()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issueType := models.IssueType(request.GetString("type", string(models.IssueTypeTask)))
	priority := models.IssuePriority(request.GetString("priority", string(models.IssuePriorityMedium)))
	if !issueType.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid type: %s (story, bug, task, epic)", issueType)), nil
	}
	if !priority.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s (lowest, low, medium, high, highest)", priority)), nil
	}

	issue, err := s.client.InsertIssue(ctx, backend.NewIssue{
		Title:       title,
		Description: request.GetString("description", ""),
		Type:        issueType,
		Status:      models.IssueStatusTodo,
		Priority:    priority,
		ProjectID:   p.ID,
		ReporterID:  user.ID,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueOut(issue))
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_move_issue",
		mcp.WithDescription("Move an issue to another board column. Any column-to-column move is allowed. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id (full, or a unique prefix when project is given)")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target column: todo, in_progress, in_review, done")),
		mcp.WithString("project", mcp.Description("Project key, name, or id (enables id-prefix lookup)")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	statusStr, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status := models.IssueStatus(statusStr)
	if !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s (todo, in_progress, in_review, done)", statusStr)), nil
	}

	issue, err := s.findIssue(ctx, issueID, request.GetString("project", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated, err := s.client.UpdateIssue(ctx, issue.ID, map[string]any{"status": string(status)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to move issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueOut(updated))
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_update_issue",
		mcp.WithDescription("Update issue fields. Provide the issue id and at least one of title, description, type, priority. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id (full, or a unique prefix when project is given)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("type", mcp.Description("New type: story, bug, task, epic")),
		mcp.WithString("priority", mcp.Description("New priority: lowest, low, medium, high, highest")),
		mcp.WithString("project", mcp.Description("Project key, name, or id (enables id-prefix lookup)")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	patch := map[string]any{}
	if title := request.GetString("title", ""); title != "" {
		patch["title"] = title
	}
	if desc := request.GetString("description", ""); desc != "" {
		patch["description"] = desc
	}
	if t := request.GetString("type", ""); t != "" {
		if !models.IssueType(t).Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid type: %s", t)), nil
		}
		patch["type"] = t
	}
	if p := request.GetString("priority", ""); p != "" {
		if !models.IssuePriority(p).Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", p)), nil
		}
		patch["priority"] = p
	}
	if len(patch) == 0 {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: title, description, type, priority"), nil
	}

	issue, err := s.findIssue(ctx, issueID, request.GetString("project", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated, err := s.client.UpdateIssue(ctx, issue.ID, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueOut(updated))
	return mcp.NewToolResultText(string(data)), nil
}

// kanri_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanri_board",
		mcp.WithDescription("Show a project's board: the four columns (todo, in_progress, in_review, done) with their issues in order."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key, name, or id")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issues, err := s.client.ListIssues(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	cols := board.Partition(issues)
	out := make([]map[string]any, len(cols))
	for i, col := range cols {
		out[i] = map[string]any{
			"status": string(col.Status),
			"label":  col.Status.Label(),
			"count":  len(col.Issues),
			"issues": issuesOut(col.Issues),
		}
	}

	data, err := json.Marshal(map[string]any{
		"project": map[string]any{"id": p.ID, "key": p.Key, "name": p.Name},
		"columns": out,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal board: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolveProject matches by key first (case-insensitive), then name, then id.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %v", err)
	}
	for _, p := range projects {
		if strings.EqualFold(p.Key, ref) {
			return p, nil
		}
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}

// findIssue resolves by exact id, falling back to unique prefix within the
// given project when one is provided.
func (s *Server) findIssue(ctx context.Context, id, projectRef string) (*models.Issue, error) {
	if issue, err := s.client.GetIssue(ctx, id); err == nil {
		return issue, nil
	}
	if projectRef == "" {
		return nil, fmt.Errorf("issue not found: %s (pass project to enable prefix lookup)", id)
	}

	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return nil, err
	}
	issues, err := s.client.ListIssues(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %v", err)
	}

	upper := strings.ToUpper(id)
	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue id %s: matches %d issues", id, len(matches))
	}
}

type issueJSON struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Assignee    string `json:"assignee,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func issueOut(issue *models.Issue) issueJSON {
	out := issueJSON{
		ID:          issue.ID,
		ProjectID:   issue.ProjectID,
		Title:       issue.Title,
		Description: issue.Description,
		Type:        string(issue.Type),
		Status:      string(issue.Status),
		Priority:    string(issue.Priority),
		CreatedAt:   issue.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   issue.UpdatedAt.Format(time.RFC3339),
	}
	if issue.Assignee != nil {
		out.Assignee = issue.Assignee.DisplayName()
	}
	if issue.Reporter != nil {
		out.Reporter = issue.Reporter.DisplayName()
	}
	return out
}

func issuesOut(issues []*models.Issue) []issueJSON {
	out := make([]issueJSON, len(issues))
	for i, issue := range issues {
		out[i] = issueOut(issue)
	}
	return out
}
