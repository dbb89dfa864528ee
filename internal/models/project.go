package models

import (
	"fmt"
	"strings"
	"time"
)

// Project represents a named container scoping a set of issues.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	projectKeyMinLen = 2
	projectKeyMaxLen = 10
	derivedKeyLen    = 4
)

// DeriveProjectKey derives the default short key from a project name:
// uppercased, non-alphanumerics stripped, truncated to four characters.
// The result may still fail ValidateProjectKey for very short names.
func DeriveProjectKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= derivedKeyLen {
			break
		}
	}
	return b.String()
}

// ValidateProjectKey checks that key is uppercase alphanumeric, 2-10 chars.
func ValidateProjectKey(key string) error {
	if len(key) < projectKeyMinLen || len(key) > projectKeyMaxLen {
		return fmt.Errorf("project key must be %d-%d characters, got %q", projectKeyMinLen, projectKeyMaxLen, key)
	}
	for _, r := range key {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("project key must be uppercase alphanumeric, got %q", key)
		}
	}
	return nil
}
