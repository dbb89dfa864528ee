package devserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanriapp/kanri/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	// A second run must skip already-applied files.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestAccounts_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.createAccount(ctx, "a@example.com", "hash", "A")
	require.NoError(t, err)

	_, err = store.createAccount(ctx, "A@Example.com", "hash", "A again")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccounts_LookupByEmailIsCaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.createAccount(ctx, "Mixed@Example.com", "hash", "")
	require.NoError(t, err)

	found, err := store.accountByEmail(ctx, "mixed@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestNewULID_UniqueAndOrdered(t *testing.T) {
	const n = 1000
	prev := ""
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := newULID()
		assert.False(t, seen[id], "duplicate ULID %s", id)
		assert.Greater(t, id, prev, "ULIDs must be strictly increasing")
		seen[id] = true
		prev = id
	}
}

func TestIssues_SameMillisecondInsertsStayOrdered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "Board", Key: "BRD", OwnerID: "owner"}
	require.NoError(t, store.insertProject(ctx, p))

	// Back-to-back inserts routinely share a created_at; the id
	// tie-break keeps them newest first.
	titles := []string{"a", "b", "c", "d", "e"}
	for _, title := range titles {
		i := &models.Issue{Title: title, Type: models.IssueTypeTask, Status: models.IssueStatusTodo, Priority: models.IssuePriorityMedium, ProjectID: p.ID, ReporterID: "owner"}
		require.NoError(t, store.insertIssue(ctx, i))
	}

	issues, err := store.listIssues(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, issues, len(titles))
	for i, issue := range issues {
		assert.Equal(t, titles[len(titles)-1-i], issue.Title)
	}
}

func TestIssues_ListNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "Board", Key: "BRD", OwnerID: "owner"}
	require.NoError(t, store.insertProject(ctx, p))

	first := &models.Issue{Title: "first", Type: models.IssueTypeTask, Status: models.IssueStatusTodo, Priority: models.IssuePriorityMedium, ProjectID: p.ID, ReporterID: "owner"}
	second := &models.Issue{Title: "second", Type: models.IssueTypeTask, Status: models.IssueStatusTodo, Priority: models.IssuePriorityMedium, ProjectID: p.ID, ReporterID: "owner"}
	require.NoError(t, store.insertIssue(ctx, first))
	time.Sleep(5 * time.Millisecond) // distinct created_at timestamps
	require.NoError(t, store.insertIssue(ctx, second))

	issues, err := store.listIssues(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "second", issues[0].Title)
	assert.Equal(t, "first", issues[1].Title)
}

func TestIssues_UpdateUnknownColumnIgnored(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "Board", Key: "BRD", OwnerID: "owner"}
	require.NoError(t, store.insertProject(ctx, p))
	i := &models.Issue{Title: "x", Type: models.IssueTypeTask, Status: models.IssueStatusTodo, Priority: models.IssuePriorityMedium, ProjectID: p.ID, ReporterID: "owner"}
	require.NoError(t, store.insertIssue(ctx, i))

	// Keys outside the allowed column list never reach the SQL.
	err := store.updateIssue(ctx, i.ID, map[string]any{"status": "done", "id": "EVIL", "reporter_id": "EVIL"})
	require.NoError(t, err)

	got, err := store.getIssue(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusDone, got.Status)
	assert.Equal(t, "owner", got.ReporterID)
}

func TestIssues_UpdateMissing(t *testing.T) {
	store := setupTestStore(t)
	err := store.updateIssue(context.Background(), "NOPE", map[string]any{"status": "done"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssues_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.getIssue(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}
