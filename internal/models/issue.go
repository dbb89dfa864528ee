package models

import "time"

// IssueStatus represents the board column an issue sits in.
type IssueStatus string

const (
	IssueStatusTodo       IssueStatus = "todo"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusInReview   IssueStatus = "in_review"
	IssueStatusDone       IssueStatus = "done"
)

// BoardStatuses lists the statuses in board column order.
func BoardStatuses() []IssueStatus {
	return []IssueStatus{IssueStatusTodo, IssueStatusInProgress, IssueStatusInReview, IssueStatusDone}
}

// Valid reports whether s is one of the four board statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusTodo, IssueStatusInProgress, IssueStatusInReview, IssueStatusDone:
		return true
	}
	return false
}

// Label returns the human-readable column name for s.
func (s IssueStatus) Label() string {
	switch s {
	case IssueStatusTodo:
		return "To Do"
	case IssueStatusInProgress:
		return "In Progress"
	case IssueStatusInReview:
		return "In Review"
	case IssueStatusDone:
		return "Done"
	}
	return string(s)
}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLowest  IssuePriority = "lowest"
	IssuePriorityLow     IssuePriority = "low"
	IssuePriorityMedium  IssuePriority = "medium"
	IssuePriorityHigh    IssuePriority = "high"
	IssuePriorityHighest IssuePriority = "highest"
)

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	switch p {
	case IssuePriorityLowest, IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityHighest:
		return true
	}
	return false
}

// IssueType represents the kind of work an issue tracks.
type IssueType string

const (
	IssueTypeStory IssueType = "story"
	IssueTypeBug   IssueType = "bug"
	IssueTypeTask  IssueType = "task"
	IssueTypeEpic  IssueType = "epic"
)

// Valid reports whether t is a known issue type.
func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeStory, IssueTypeBug, IssueTypeTask, IssueTypeEpic:
		return true
	}
	return false
}

// Issue represents a trackable unit of work inside a project.
// Assignee and Reporter are identity summaries joined in by the backend
// at read time; they are never synthesized locally.
type Issue struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Type        IssueType     `json:"type"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	ProjectID   string        `json:"project_id"`
	AssigneeID  string        `json:"assignee_id,omitempty"`
	ReporterID  string        `json:"reporter_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	Assignee *Identity `json:"assignee,omitempty"`
	Reporter *Identity `json:"reporter,omitempty"`
}
