package models

import (
	"strings"
	"time"
)

// Identity represents an authenticated actor. Identities are created by
// the backend's sign-up flow and are read-only to this client; the board
// only ever sees them as joined assignee/reporter summaries.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the full name if set, otherwise the email.
func (u *Identity) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Initial returns a single uppercase character for avatar-style badges.
func (u *Identity) Initial() string {
	name := u.DisplayName()
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}
