package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kanriapp/kanri/internal/models"
)

// issueSelect embeds the assignee/reporter identity summaries with every
// issue row, PostgREST foreign-key embedding syntax.
const issueSelect = "*," +
	"assignee:profiles!assignee_id(id,full_name,email,avatar_url)," +
	"reporter:profiles!reporter_id(id,full_name,email,avatar_url)"

// ListProjects returns all projects visible to the current identity,
// newest first.
func (c *Client) ListProjects(ctx context.Context) ([]*models.Project, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var projects []*models.Project
	if err := c.do(ctx, http.MethodGet, "/rest/v1/projects", q, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// NewProject is the insert shape for one project row. The backend assigns
// id and timestamps.
type NewProject struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id"`
}

// InsertProject inserts one project and returns the server representation.
func (c *Client) InsertProject(ctx context.Context, in NewProject) (*models.Project, error) {
	var rows []*models.Project
	if err := c.do(ctx, http.MethodPost, "/rest/v1/projects", nil, []NewProject{in}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// ListIssues returns the issues belonging to projectID, newest first,
// each row carrying the joined assignee/reporter summaries.
func (c *Client) ListIssues(ctx context.Context, projectID string) ([]*models.Issue, error) {
	q := url.Values{}
	q.Set("select", issueSelect)
	q.Set("project_id", "eq."+projectID)
	q.Set("order", "created_at.desc")

	var issues []*models.Issue
	if err := c.do(ctx, http.MethodGet, "/rest/v1/issues", q, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue fetches a single issue by id with joined identity summaries.
func (c *Client) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	q := url.Values{}
	q.Set("select", issueSelect)
	q.Set("id", "eq."+id)

	var rows []*models.Issue
	if err := c.do(ctx, http.MethodGet, "/rest/v1/issues", q, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// NewIssue is the insert shape for one issue row.
type NewIssue struct {
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Type        models.IssueType     `json:"type"`
	Status      models.IssueStatus   `json:"status"`
	Priority    models.IssuePriority `json:"priority"`
	ProjectID   string               `json:"project_id"`
	ReporterID  string               `json:"reporter_id"`
}

// InsertIssue inserts one issue and returns the bare server row. Callers
// wanting the joined representation follow up with GetIssue.
func (c *Client) InsertIssue(ctx context.Context, in NewIssue) (*models.Issue, error) {
	var rows []*models.Issue
	if err := c.do(ctx, http.MethodPost, "/rest/v1/issues", nil, []NewIssue{in}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// UpdateIssue applies a partial update to the issue matching id and
// returns the bare updated row. Keys are column names.
func (c *Client) UpdateIssue(ctx context.Context, id string, patch map[string]any) (*models.Issue, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)

	var rows []*models.Issue
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/issues", q, patch, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// NewProfile is the insert shape for the application-level profile row
// created as the second step of sign-up.
type NewProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// InsertProfile creates the profile row for a newly signed-up identity.
func (c *Client) InsertProfile(ctx context.Context, in NewProfile) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/profiles", nil, []NewProfile{in}, nil)
}
