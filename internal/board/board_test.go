package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanriapp/kanri/internal/models"
)

func issue(id string, status models.IssueStatus) *models.Issue {
	return &models.Issue{ID: id, Title: "issue " + id, Status: status}
}

func TestPartition_AllColumnsPresent(t *testing.T) {
	cols := Partition(nil)

	require.Len(t, cols, 4)
	assert.Equal(t, models.IssueStatusTodo, cols[0].Status)
	assert.Equal(t, models.IssueStatusInProgress, cols[1].Status)
	assert.Equal(t, models.IssueStatusInReview, cols[2].Status)
	assert.Equal(t, models.IssueStatusDone, cols[3].Status)

	// Empty columns are empty slices, not nil: renderers iterate them.
	for _, col := range cols {
		assert.NotNil(t, col.Issues)
		assert.Empty(t, col.Issues)
	}
}

func TestPartition_SplitsByStatus(t *testing.T) {
	issues := []*models.Issue{
		issue("A", models.IssueStatusDone),
		issue("B", models.IssueStatusTodo),
		issue("C", models.IssueStatusInProgress),
		issue("D", models.IssueStatusTodo),
	}

	cols := Partition(issues)

	require.Len(t, cols[0].Issues, 2)
	assert.Equal(t, "B", cols[0].Issues[0].ID)
	assert.Equal(t, "D", cols[0].Issues[1].ID)
	require.Len(t, cols[1].Issues, 1)
	assert.Equal(t, "C", cols[1].Issues[0].ID)
	assert.Empty(t, cols[2].Issues)
	require.Len(t, cols[3].Issues, 1)
	assert.Equal(t, "A", cols[3].Issues[0].ID)
}

func TestPartition_UnknownStatusDropped(t *testing.T) {
	issues := []*models.Issue{
		issue("A", models.IssueStatusTodo),
		issue("B", models.IssueStatus("archived")),
		issue("C", models.IssueStatus("")),
	}

	cols := Partition(issues)

	total := 0
	for _, col := range cols {
		total += len(col.Issues)
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, "A", cols[0].Issues[0].ID)
}

func TestPartition_PreservesInputOrder(t *testing.T) {
	issues := []*models.Issue{
		issue("newest", models.IssueStatusDone),
		issue("middle", models.IssueStatusDone),
		issue("oldest", models.IssueStatusDone),
	}

	cols := Partition(issues)

	require.Len(t, cols[3].Issues, 3)
	assert.Equal(t, "newest", cols[3].Issues[0].ID)
	assert.Equal(t, "middle", cols[3].Issues[1].ID)
	assert.Equal(t, "oldest", cols[3].Issues[2].ID)
}

func TestCanCreateIn(t *testing.T) {
	assert.True(t, CanCreateIn(models.IssueStatusTodo))
	assert.False(t, CanCreateIn(models.IssueStatusInProgress))
	assert.False(t, CanCreateIn(models.IssueStatusInReview))
	assert.False(t, CanCreateIn(models.IssueStatusDone))
}

// recordingMover captures the patch a Drop produces.
type recordingMover struct {
	id    string
	patch map[string]any
}

func (m *recordingMover) Update(ctx context.Context, id string, patch map[string]any) (*models.Issue, error) {
	m.id = id
	m.patch = patch
	return &models.Issue{ID: id}, nil
}

func TestDrop_StatusOnlyUpdate(t *testing.T) {
	m := &recordingMover{}

	_, err := Drop(context.Background(), m, "ISSUE1", models.IssueStatusInReview)
	require.NoError(t, err)

	assert.Equal(t, "ISSUE1", m.id)
	assert.Equal(t, map[string]any{"status": "in_review"}, m.patch)
}

func TestDrop_AnyColumnToAnyColumn(t *testing.T) {
	// Done back to todo is as legal as any forward move.
	m := &recordingMover{}
	_, err := Drop(context.Background(), m, "ISSUE2", models.IssueStatusTodo)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "todo"}, m.patch)
}
