package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/devserver"
	"github.com/kanriapp/kanri/internal/models"
)

const testAPIKey = "test-anon-key"

// interceptor lets a test take over (or observe) requests before they
// reach the dev server.
type interceptor struct {
	mu sync.Mutex
	fn func(w http.ResponseWriter, r *http.Request) bool
}

func (i *interceptor) set(fn func(w http.ResponseWriter, r *http.Request) bool) {
	i.mu.Lock()
	i.fn = fn
	i.mu.Unlock()
}

func (i *interceptor) handle(w http.ResponseWriter, r *http.Request) bool {
	i.mu.Lock()
	fn := i.fn
	i.mu.Unlock()
	return fn != nil && fn(w, r)
}

// setupEnv runs a dev server over httptest and returns a client pointed
// at it plus the request interceptor.
func setupEnv(t *testing.T) (*backend.Client, *interceptor) {
	t.Helper()

	dstore, err := devserver.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, dstore.Migrate(context.Background()))
	t.Cleanup(func() { _ = dstore.Close() })

	srv := devserver.NewServer(dstore, testAPIKey, "test-secret", nil)
	router := srv.Router()

	ic := &interceptor{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ic.handle(w, r) {
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	return backend.New(backend.Config{URL: ts.URL, APIKey: testAPIKey}), ic
}

// signUp registers a fresh account with its profile row and leaves the
// client signed in.
func signUp(t *testing.T, client *backend.Client, email string) *models.Identity {
	t.Helper()
	session, err := client.SignUp(context.Background(), email, "hunter22", "Test User")
	require.NoError(t, err)
	require.NotNil(t, session.User)
	require.NoError(t, client.InsertProfile(context.Background(), backend.NewProfile{
		ID:       session.User.ID,
		Email:    session.User.Email,
		FullName: session.User.FullName,
	}))
	return session.User
}

func waitNotLoading(t *testing.T, loading func() bool) {
	t.Helper()
	require.Eventually(t, func() bool { return !loading() }, 2*time.Second, 5*time.Millisecond)
}

// --- SessionStore ---

func TestSessionStore_SignedOutAfterInitialFetch(t *testing.T) {
	client, _ := setupEnv(t)

	s := NewSessionStore(context.Background(), client)
	defer s.Close()

	waitNotLoading(t, s.Loading)
	assert.Nil(t, s.Identity())
}

func TestSessionStore_SignInSignOut(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()

	user := signUp(t, client, "dev@example.com")
	require.NoError(t, client.SignOut(ctx))

	s := NewSessionStore(ctx, client)
	defer s.Close()
	waitNotLoading(t, s.Loading)

	// The identity arrives through the auth-state subscription.
	require.NoError(t, s.SignIn(ctx, "dev@example.com", "hunter22"))
	got := s.Identity()
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, s.SignOut(ctx))
	assert.Nil(t, s.Identity())
}

func TestSessionStore_SignIn_BadCredentials(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()

	s := NewSessionStore(ctx, client)
	defer s.Close()
	waitNotLoading(t, s.Loading)

	err := s.SignIn(ctx, "nobody@example.com", "wrong")
	require.Error(t, err)
	assert.Nil(t, s.Identity())
}

func TestSessionStore_SignUp_CreatesProfile(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()

	s := NewSessionStore(ctx, client)
	defer s.Close()
	waitNotLoading(t, s.Loading)

	require.NoError(t, s.SignUp(ctx, "new@example.com", "hunter22", "New User"))
	user := s.Identity()
	require.NotNil(t, user)

	// The profile row exists: an issue reported by this user carries the
	// joined reporter summary.
	p, err := client.InsertProject(ctx, backend.NewProject{Name: "Board", Key: "BRD", OwnerID: user.ID})
	require.NoError(t, err)
	row, err := client.InsertIssue(ctx, backend.NewIssue{
		Title: "x", Type: models.IssueTypeTask, Status: models.IssueStatusTodo,
		Priority: models.IssuePriorityMedium, ProjectID: p.ID, ReporterID: user.ID,
	})
	require.NoError(t, err)

	issue, err := client.GetIssue(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, issue.Reporter)
	assert.Equal(t, "New User", issue.Reporter.FullName)
}

func TestSessionStore_SignUp_ProfileFailureKeepsAccount(t *testing.T) {
	client, ic := setupEnv(t)
	ctx := context.Background()

	s := NewSessionStore(ctx, client)
	defer s.Close()
	waitNotLoading(t, s.Loading)

	// Fail the second write of the two-step sign-up.
	ic.set(func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/v1/profiles" {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return true
		}
		return false
	})

	err := s.SignUp(ctx, "orphan@example.com", "hunter22", "Orphan")
	require.Error(t, err)

	// No rollback: the account exists and the session is active.
	assert.NotNil(t, client.CurrentSession())
	ic.set(nil)
	require.NoError(t, client.SignOut(ctx))
	_, err = client.SignIn(ctx, "orphan@example.com", "hunter22")
	assert.NoError(t, err)
}

func TestSessionStore_CloseStopsUpdates(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()

	signUp(t, client, "dev@example.com")
	require.NoError(t, client.SignOut(ctx))

	s := NewSessionStore(ctx, client)
	waitNotLoading(t, s.Loading)
	s.Close()

	// Auth changes after Close never reach the store.
	_, err := client.SignIn(ctx, "dev@example.com", "hunter22")
	require.NoError(t, err)
	assert.Nil(t, s.Identity())
}

// --- ProjectStore ---

func TestProjectStore_LoadNewestFirst(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()
	user := signUp(t, client, "dev@example.com")

	_, err := client.InsertProject(ctx, backend.NewProject{Name: "First", Key: "FIR", OwnerID: user.ID})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct created_at timestamps
	_, err = client.InsertProject(ctx, backend.NewProject{Name: "Second", Key: "SEC", OwnerID: user.ID})
	require.NoError(t, err)

	s := NewProjectStore(client, nil)
	assert.True(t, s.Loading())
	s.Load(ctx)
	assert.False(t, s.Loading())

	projects := s.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, "Second", projects[0].Name)
	assert.Equal(t, "First", projects[1].Name)
}

func TestProjectStore_RefetchIsIdempotent(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()
	user := signUp(t, client, "dev@example.com")

	for _, p := range []backend.NewProject{
		{Name: "Alpha", Key: "ALP", OwnerID: user.ID},
		{Name: "Beta", Key: "BET", OwnerID: user.ID},
		{Name: "Gamma", Key: "GAM", OwnerID: user.ID},
	} {
		_, err := client.InsertProject(ctx, p)
		require.NoError(t, err)
	}

	s := NewProjectStore(client, nil)
	s.Load(ctx)
	first := projectIDs(s.Projects())
	require.Len(t, first, 3)

	// With no intervening writes, another fetch returns the same list in
	// the same order.
	s.Refetch(ctx)
	assert.Equal(t, first, projectIDs(s.Projects()))
	s.Refetch(ctx)
	assert.Equal(t, first, projectIDs(s.Projects()))
}

func projectIDs(projects []*models.Project) []string {
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}

func TestProjectStore_Create_DerivesKeyAndPrepends(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()
	user := signUp(t, client, "dev@example.com")

	s := NewProjectStore(client, nil)
	s.Load(ctx)

	_, err := s.Create(ctx, CreateProjectInput{Name: "Existing", Key: "EXIST", OwnerID: user.ID})
	require.NoError(t, err)

	p, err := s.Create(ctx, CreateProjectInput{Name: "Kanban Core", OwnerID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, "KANB", p.Key)

	projects := s.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, p.ID, projects[0].ID)
}

func TestProjectStore_Create_InvalidKey(t *testing.T) {
	client, _ := setupEnv(t)
	user := signUp(t, client, "dev@example.com")

	s := NewProjectStore(client, nil)
	s.Load(context.Background())

	// A one-character name derives a key below the minimum length.
	_, err := s.Create(context.Background(), CreateProjectInput{Name: "X", OwnerID: user.ID})
	require.Error(t, err)
	assert.Empty(t, s.Projects())
}

func TestProjectStore_LoadFailureLeavesList(t *testing.T) {
	client, ic := setupEnv(t)
	ctx := context.Background()
	user := signUp(t, client, "dev@example.com")

	_, err := client.InsertProject(ctx, backend.NewProject{Name: "Keep", Key: "KEEP", OwnerID: user.ID})
	require.NoError(t, err)

	s := NewProjectStore(client, nil)
	s.Load(ctx)
	require.Len(t, s.Projects(), 1)

	ic.set(func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodGet && r.URL.Path == "/rest/v1/projects" {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return true
		}
		return false
	})

	s.Refetch(ctx)
	assert.False(t, s.Loading())
	assert.Len(t, s.Projects(), 1)
}

func TestProjectStore_Selection(t *testing.T) {
	client, _ := setupEnv(t)
	ctx := context.Background()
	user := signUp(t, client, "dev@example.com")

	s := NewProjectStore(client, nil)
	s.Load(ctx)
	assert.Nil(t, s.Selected())

	first, err := s.Create(ctx, CreateProjectInput{Name: "Alpha", Key: "ALPHA", OwnerID: user.ID})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Create(ctx, CreateProjectInput{Name: "Beta", Key: "BETA", OwnerID: user.ID})
	require.NoError(t, err)

	// Default: the first project in the list (most recently created).
	got := s.Selected()
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	s.Select(first.ID)
	assert.Equal(t, first.ID, s.Selected().ID)

	// A selection that no longer resolves falls back to the first project.
	s.Select("GONE")
	assert.Equal(t, second.ID, s.Selected().ID)
}
