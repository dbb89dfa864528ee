package devserver

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kanriapp/kanri/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage errors callers branch on.
var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// account is a stored auth account. Separate from the profiles table:
// accounts belong to the auth service, profiles to the application.
type account struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// Store is the dev server's SQLite persistence, modernc.org/sqlite
// (pure Go, no CGO).
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at the given path.
// Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's pool, preventing "database is
	// locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

// ulidEntropy is shared and monotonic: ids assigned within the same
// millisecond still come out strictly increasing, so `ORDER BY
// created_at DESC, id DESC` never reorders same-timestamp inserts.
var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newULID generates a new ULID string for backend-assigned row ids.
func newULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Accounts ---

func (s *Store) createAccount(ctx context.Context, email, passwordHash, fullName string) (*account, error) {
	a := &account{
		ID:           newULID(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		FullName:     fullName,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, full_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.FullName, a.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *Store) accountByEmail(ctx context.Context, email string) (*account, error) {
	a := &account{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM accounts WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (s *Store) accountByID(ctx context.Context, id string) (*account, error) {
	a := &account{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (a *account) identity() *models.Identity {
	return &models.Identity{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt,
	}
}

// --- Profiles ---

func (s *Store) createProfile(ctx context.Context, p *models.Identity) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FullName, p.AvatarURL, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// --- Projects ---

func (s *Store) insertProject(ctx context.Context, p *models.Project) error {
	p.ID = newULID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, key, description, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Key, p.Description, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) listProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, key, description, owner_id, created_at, updated_at
		FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := []*models.Project{}
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Key, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Issues ---

const issueJoinQuery = `SELECT
	i.id, i.title, i.description, i.type, i.status, i.priority,
	i.project_id, COALESCE(i.assignee_id, ''), i.reporter_id, i.created_at, i.updated_at,
	a.id, a.email, a.full_name, a.avatar_url, a.created_at,
	r.id, r.email, r.full_name, r.avatar_url, r.created_at
FROM issues i
LEFT JOIN profiles a ON a.id = i.assignee_id
LEFT JOIN profiles r ON r.id = i.reporter_id`

func scanIssue(scan func(dest ...any) error) (*models.Issue, error) {
	i := &models.Issue{}
	var (
		aID, aEmail, aName, aAvatar sql.NullString
		rID, rEmail, rName, rAvatar sql.NullString
		aCreated, rCreated          sql.NullTime
	)
	err := scan(
		&i.ID, &i.Title, &i.Description, &i.Type, &i.Status, &i.Priority,
		&i.ProjectID, &i.AssigneeID, &i.ReporterID, &i.CreatedAt, &i.UpdatedAt,
		&aID, &aEmail, &aName, &aAvatar, &aCreated,
		&rID, &rEmail, &rName, &rAvatar, &rCreated,
	)
	if err != nil {
		return nil, err
	}
	if aID.Valid {
		i.Assignee = &models.Identity{ID: aID.String, Email: aEmail.String, FullName: aName.String, AvatarURL: aAvatar.String, CreatedAt: aCreated.Time}
	}
	if rID.Valid {
		i.Reporter = &models.Identity{ID: rID.String, Email: rEmail.String, FullName: rName.String, AvatarURL: rAvatar.String, CreatedAt: rCreated.Time}
	}
	return i, nil
}

func (s *Store) listIssues(ctx context.Context, projectID string) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		issueJoinQuery+` WHERE i.project_id = ? ORDER BY i.created_at DESC, i.id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*models.Issue{}
	for rows.Next() {
		i, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

func (s *Store) getIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx, issueJoinQuery+` WHERE i.id = ?`, id)
	i, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return i, nil
}

func (s *Store) insertIssue(ctx context.Context, i *models.Issue) error {
	i.ID = newULID()
	now := time.Now().UTC()
	i.CreatedAt = now
	i.UpdatedAt = now

	var assignee any
	if i.AssigneeID != "" {
		assignee = i.AssigneeID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, title, description, type, status, priority, project_id, assignee_id, reporter_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Title, i.Description, i.Type, i.Status, i.Priority,
		i.ProjectID, assignee, i.ReporterID, i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// issueColumns lists the columns a PATCH may touch, in a fixed order so
// generated SQL is deterministic.
var issueColumns = []string{"title", "description", "type", "status", "priority", "assignee_id"}

func (s *Store) updateIssue(ctx context.Context, id string, patch map[string]any) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	for _, col := range issueColumns {
		if v, ok := patch[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
