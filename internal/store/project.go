package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/models"
)

// ProjectStore owns the in-memory project list and the pointer to the
// currently selected project.
type ProjectStore struct {
	client *backend.Client
	log    *slog.Logger

	mu       sync.Mutex
	projects []*models.Project
	loading  bool
	selected string
}

// NewProjectStore builds the store. Call Load to populate it; the store
// reports loading until the first Load attempt finishes.
func NewProjectStore(client *backend.Client, log *slog.Logger) *ProjectStore {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectStore{client: client, log: log, loading: true}
}

// Load fetches all visible projects, newest first. On failure the list
// is left as it was (empty on first load) and the error is logged; the
// loading flag clears either way.
func (s *ProjectStore) Load(ctx context.Context) {
	projects, err := s.client.ListProjects(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.Error("fetch projects", "err", err)
		return
	}
	s.projects = projects
}

// Refetch re-runs Load on demand.
func (s *ProjectStore) Refetch(ctx context.Context) {
	s.Load(ctx)
}

// Projects returns a snapshot of the project list.
func (s *ProjectStore) Projects() []*models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// Loading reports whether the first fetch is still outstanding.
func (s *ProjectStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// CreateProjectInput is the user-facing create shape. An empty Key means
// "derive from the name".
type CreateProjectInput struct {
	Name        string
	Key         string
	Description string
	OwnerID     string
}

// Create inserts one project. The list only changes after the backend
// acknowledges: on success the returned project (with server-assigned id
// and timestamps) is prepended; on failure the list is untouched.
func (s *ProjectStore) Create(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	key := in.Key
	if key == "" {
		key = models.DeriveProjectKey(in.Name)
	}
	if err := models.ValidateProjectKey(key); err != nil {
		return nil, err
	}

	p, err := s.client.InsertProject(ctx, backend.NewProject{
		Name:        in.Name,
		Key:         key,
		Description: in.Description,
		OwnerID:     in.OwnerID,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.projects = append([]*models.Project{p}, s.projects...)
	s.mu.Unlock()
	return p, nil
}

// Select sets the selected-project pointer.
func (s *ProjectStore) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
}

// Selected returns the selected project, defaulting to the first project
// once the list has loaded and nothing was explicitly selected. Returns
// nil when the list is empty or the selection no longer exists.
func (s *ProjectStore) Selected() *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != "" {
		for _, p := range s.projects {
			if p.ID == s.selected {
				return p
			}
		}
	}
	if len(s.projects) > 0 {
		return s.projects[0]
	}
	return nil
}
