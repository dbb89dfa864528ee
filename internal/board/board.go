// Package board derives the four status-partitioned columns from an
// issue list and turns drop gestures back into issue mutations.
package board

import (
	"context"

	"github.com/kanriapp/kanri/internal/models"
)

// Column is one status-partitioned sub-list of the board.
type Column struct {
	Status models.IssueStatus
	Issues []*models.Issue
}

// Partition splits issues into the four board columns, in display order.
// Membership is exact equality on the status field; an issue carrying an
// unrecognized status appears in no column. Relative order within a
// column follows the input list.
func Partition(issues []*models.Issue) []Column {
	statuses := models.BoardStatuses()
	cols := make([]Column, len(statuses))
	index := make(map[models.IssueStatus]int, len(statuses))
	for i, st := range statuses {
		cols[i] = Column{Status: st, Issues: []*models.Issue{}}
		index[st] = i
	}

	for _, issue := range issues {
		if i, ok := index[issue.Status]; ok {
			cols[i].Issues = append(cols[i].Issues, issue)
		}
	}
	return cols
}

// CanCreateIn reports whether the create-issue affordance is available
// on a column. Issues are always created in todo, so only that column
// offers it.
func CanCreateIn(status models.IssueStatus) bool {
	return status == models.IssueStatusTodo
}

// Mover is the slice of the issue store a drop needs.
type Mover interface {
	Update(ctx context.Context, id string, patch map[string]any) (*models.Issue, error)
}

// Drop applies a drag-and-drop gesture: the dragged issue id plus the
// target column's status become a single status-only update. Every
// column-to-column move is legal; there is no transition graph.
func Drop(ctx context.Context, m Mover, issueID string, target models.IssueStatus) (*models.Issue, error) {
	return m.Update(ctx, issueID, map[string]any{"status": string(target)})
}
