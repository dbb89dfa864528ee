package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/models"
)

// IssueStore owns the in-memory issue list for one project at a time.
// Rebinding the store to a different project bumps an internal
// generation counter; fetch responses carry the generation they were
// issued under and are discarded when it no longer matches, so a slow
// fetch for a previously selected project can never overwrite the list.
type IssueStore struct {
	client *backend.Client
	log    *slog.Logger

	mu        sync.Mutex
	issues    []*models.Issue
	loading   bool
	projectID string
	gen       uint64
}

// NewIssueStore builds a store bound to projectID, which may be empty.
// A store bound to an empty project id performs no fetches and holds an
// empty list.
func NewIssueStore(client *backend.Client, log *slog.Logger, projectID string) *IssueStore {
	if log == nil {
		log = slog.Default()
	}
	return &IssueStore{
		client:    client,
		log:       log,
		projectID: projectID,
		loading:   projectID != "",
	}
}

// SetProject rebinds the store to a different project and reports
// whether the binding changed. A change invalidates in-flight fetches
// and clears the list; callers follow up with Load when the new id is
// non-empty.
func (s *IssueStore) SetProject(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID == s.projectID {
		return false
	}
	s.projectID = projectID
	s.gen++
	s.issues = nil
	s.loading = projectID != ""
	return true
}

// ProjectID returns the project the store is currently bound to.
func (s *IssueStore) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Load fetches the bound project's issues, newest first, with joined
// assignee/reporter summaries. Read failures are logged and leave the
// list as-is; the loading flag clears after the attempt regardless of
// outcome. A response that comes back after the store was rebound is
// dropped on the floor.
func (s *IssueStore) Load(ctx context.Context) {
	s.mu.Lock()
	projectID := s.projectID
	gen := s.gen
	s.mu.Unlock()

	if projectID == "" {
		s.mu.Lock()
		s.issues = nil
		s.loading = false
		s.mu.Unlock()
		return
	}

	issues, err := s.client.ListIssues(ctx, projectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Stale response for a since-changed project binding.
		return
	}
	s.loading = false
	if err != nil {
		s.log.Error("fetch issues", "project_id", projectID, "err", err)
		return
	}
	s.issues = issues
}

// Refetch re-runs Load on demand.
func (s *IssueStore) Refetch(ctx context.Context) {
	s.Load(ctx)
}

// Issues returns a snapshot of the issue list.
func (s *IssueStore) Issues() []*models.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Issue, len(s.issues))
	copy(out, s.issues)
	return out
}

// Loading reports whether the first fetch for the current binding is
// still outstanding.
func (s *IssueStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// CreateIssueInput is the user-facing create shape. Status is not part
// of it: new issues always start in todo.
type CreateIssueInput struct {
	Title       string
	Description string
	Type        models.IssueType
	Priority    models.IssuePriority
}

// Create inserts one issue into the bound project with status forced to
// todo, the reporter fixed to reporterID, and no assignee. The insert is
// write-then-reread: on success the joined representation of the new row
// is fetched and prepended. On failure the list is untouched.
func (s *IssueStore) Create(ctx context.Context, in CreateIssueInput, reporterID string) (*models.Issue, error) {
	s.mu.Lock()
	projectID := s.projectID
	gen := s.gen
	s.mu.Unlock()

	row, err := s.client.InsertIssue(ctx, backend.NewIssue{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Status:      models.IssueStatusTodo,
		Priority:    in.Priority,
		ProjectID:   projectID,
		ReporterID:  reporterID,
	})
	if err != nil {
		return nil, err
	}

	issue, err := s.client.GetIssue(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen == s.gen {
		s.issues = append([]*models.Issue{issue}, s.issues...)
	}
	s.mu.Unlock()
	return issue, nil
}

// Update applies a partial update (most commonly just the status column)
// to the issue matching id, re-reads the joined representation, and
// replaces the matching element in place, preserving its position. On
// failure the list is untouched.
func (s *IssueStore) Update(ctx context.Context, id string, patch map[string]any) (*models.Issue, error) {
	row, err := s.client.UpdateIssue(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	issue, err := s.client.GetIssue(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i, existing := range s.issues {
		if existing.ID == id {
			s.issues[i] = issue
			break
		}
	}
	s.mu.Unlock()
	return issue, nil
}
