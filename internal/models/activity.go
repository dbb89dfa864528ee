package models

import "time"

// Comment is part of the shared vocabulary; no client flow exercises
// comments yet, so there is no store or command surface for them.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IssueID   string    `json:"issue_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	User *Identity `json:"user,omitempty"`
}

// ActivityType categorizes project activity entries.
type ActivityType string

const (
	ActivityIssueCreated  ActivityType = "issue_created"
	ActivityIssueUpdated  ActivityType = "issue_updated"
	ActivityCommentAdded  ActivityType = "comment_added"
	ActivityStatusChanged ActivityType = "status_changed"
)

// Activity is part of the shared vocabulary; no client flow exercises
// activity feeds yet.
type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	IssueID     string       `json:"issue_id,omitempty"`
	UserID      string       `json:"user_id"`
	ProjectID   string       `json:"project_id"`
	CreatedAt   time.Time    `json:"created_at"`
}
