// Package devserver emulates the hosted backend for local development
// and tests: GoTrue-style auth endpoints plus a PostgREST-style table
// API over SQLite. It implements only what the kanri client uses.
package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kanriapp/kanri/internal/models"
)

// Server handles the emulated backend routes.
type Server struct {
	store     *Store
	apiKey    string
	jwtSecret []byte
	log       *slog.Logger
}

// NewServer creates a dev server over the given store. apiKey is the
// publishable key clients must present; jwtSecret signs access tokens.
func NewServer(store *Store, apiKey, jwtSecret string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:     store,
		apiKey:    apiKey,
		jwtSecret: []byte(jwtSecret),
		log:       log,
	}
}

// Router returns the http.Handler for all emulated routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/v1/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/v1/token", s.handleToken)
	mux.HandleFunc("POST /auth/v1/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/v1/user", s.handleUser)

	mux.HandleFunc("GET /rest/v1/projects", s.handleListProjects)
	mux.HandleFunc("POST /rest/v1/projects", s.handleInsertProjects)
	mux.HandleFunc("GET /rest/v1/issues", s.handleListIssues)
	mux.HandleFunc("POST /rest/v1/issues", s.handleInsertIssues)
	mux.HandleFunc("PATCH /rest/v1/issues", s.handleUpdateIssues)
	mux.HandleFunc("POST /rest/v1/profiles", s.handleInsertProfiles)

	return s.logMiddleware(s.apiKeyMiddleware(mux))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
	})
}

// apiKeyMiddleware enforces the publishable key on every route, the way
// the hosted service gates all traffic behind the anon key.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// bearerAccount resolves the Authorization header to an account, or nil
// when the request carries only the anon key.
func (s *Server) bearerAccount(r *http.Request) *account {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == s.apiKey {
		return nil
	}
	id, err := s.parseToken(raw)
	if err != nil {
		return nil
	}
	a, err := s.store.accountByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return a
}

// --- Auth handlers ---

type credentialsRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data"`
}

func (s *Server) tokenResponse(w http.ResponseWriter, a *account) {
	token, exp, err := s.issueToken(a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  token,
		"token_type":    "bearer",
		"expires_in":    int(time.Until(exp).Seconds()),
		"refresh_token": newULID(),
		"user":          a.identity(),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password")
		return
	}

	a, err := s.store.createAccount(r.Context(), req.Email, string(hash), req.Data["full_name"])
	if errors.Is(err, ErrEmailTaken) {
		writeError(w, http.StatusUnprocessableEntity, "User already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.tokenResponse(w, a)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "password" {
		writeError(w, http.StatusBadRequest, "unsupported grant type")
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.store.accountByEmail(r.Context(), req.Email)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusBadRequest, "Invalid login credentials")
		return
	}

	s.tokenResponse(w, a)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; logout just acknowledges.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	a := s.bearerAccount(r)
	if a == nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	writeJSON(w, http.StatusOK, a.identity())
}

// --- Table handlers ---

// eqFilter extracts a PostgREST `column=eq.value` query parameter.
func eqFilter(r *http.Request, column string) (string, bool) {
	v := r.URL.Query().Get(column)
	if strings.HasPrefix(v, "eq.") {
		return strings.TrimPrefix(v, "eq."), true
	}
	return "", false
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.listProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleInsertProjects(w http.ResponseWriter, r *http.Request) {
	var rows []*models.Project
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out := make([]*models.Project, 0, len(rows))
	for _, p := range rows {
		if p.Name == "" || p.Key == "" {
			writeError(w, http.StatusUnprocessableEntity, "name and key are required")
			return
		}
		if err := s.store.insertProject(r.Context(), p); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	if id, ok := eqFilter(r, "id"); ok {
		issue, err := s.store.getIssue(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusOK, []*models.Issue{})
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, []*models.Issue{issue})
		return
	}

	projectID, ok := eqFilter(r, "project_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "project_id filter is required")
		return
	}
	issues, err := s.store.listIssues(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleInsertIssues(w http.ResponseWriter, r *http.Request) {
	var rows []*models.Issue
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out := make([]*models.Issue, 0, len(rows))
	for _, i := range rows {
		if i.Title == "" || i.ProjectID == "" || i.ReporterID == "" {
			writeError(w, http.StatusUnprocessableEntity, "title, project_id and reporter_id are required")
			return
		}
		if !i.Status.Valid() || !i.Type.Valid() || !i.Priority.Valid() {
			writeError(w, http.StatusUnprocessableEntity, "invalid status, type, or priority")
			return
		}
		if err := s.store.insertIssue(r.Context(), i); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, i)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateIssues(w http.ResponseWriter, r *http.Request) {
	id, ok := eqFilter(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id filter is required")
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if status, ok := patch["status"].(string); ok && !models.IssueStatus(status).Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid status")
		return
	}

	if err := s.store.updateIssue(r.Context(), id, patch); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusOK, []*models.Issue{})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	issue, err := s.store.getIssue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, []*models.Issue{issue})
}

func (s *Server) handleInsertProfiles(w http.ResponseWriter, r *http.Request) {
	var rows []*models.Identity
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, p := range rows {
		if p.ID == "" || p.Email == "" {
			writeError(w, http.StatusUnprocessableEntity, "id and email are required")
			return
		}
		if err := s.store.createProfile(r.Context(), p); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, rows)
}
