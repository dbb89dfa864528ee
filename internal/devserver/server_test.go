package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanriapp/kanri/internal/models"
)

const testAPIKey = "test-anon-key"

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return NewServer(store, testAPIKey, "test-secret", nil)
}

// doJSON runs one request with the api key set and optional bearer token.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewBuffer(data)
	} else {
		rdr = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("apikey", testAPIKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// signup registers an account and returns its token and identity.
func signup(t *testing.T, router http.Handler, email string) (string, *models.Identity) {
	t.Helper()

	w := doJSON(t, router, "POST", "/auth/v1/signup", "", map[string]any{
		"email":    email,
		"password": "hunter22",
		"data":     map[string]string{"full_name": "Test User"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string           `json:"access_token"`
		User        *models.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, resp.User)
	return resp.AccessToken, resp.User
}

func TestAPIKeyRequired(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest("GET", "/rest/v1/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupAndPasswordGrant(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	token, user := signup(t, router, "dev@example.com")
	assert.Equal(t, "dev@example.com", user.Email)
	assert.Equal(t, "Test User", user.FullName)

	// Token endpoint with the right password.
	w := doJSON(t, router, "POST", "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "dev@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password.
	w = doJSON(t, router, "POST", "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "dev@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid login credentials")

	// The token resolves back to the account.
	w = doJSON(t, router, "GET", "/auth/v1/user", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var fetched models.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, user.ID, fetched.ID)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	signup(t, router, "dup@example.com")

	w := doJSON(t, router, "POST", "/auth/v1/signup", "", map[string]any{
		"email":    "dup@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestUser_InvalidToken(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "GET", "/auth/v1/user", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProjects_InsertAndList(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, user := signup(t, router, "owner@example.com")

	w := doJSON(t, router, "POST", "/rest/v1/projects", token, []map[string]any{
		{"name": "Kanban Core", "key": "KANB", "owner_id": user.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created []*models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, "KANB", created[0].Key)
	assert.False(t, created[0].CreatedAt.IsZero())

	w = doJSON(t, router, "GET", "/rest/v1/projects?select=*&order=created_at.desc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []*models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created[0].ID, listed[0].ID)
}

func TestProjects_Insert_MissingKey(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, user := signup(t, router, "owner@example.com")

	w := doJSON(t, router, "POST", "/rest/v1/projects", token, []map[string]any{
		{"name": "No Key", "owner_id": user.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// seedProject inserts a project and a profile for the given identity.
func seedProject(t *testing.T, router http.Handler, token string, user *models.Identity) *models.Project {
	t.Helper()

	w := doJSON(t, router, "POST", "/rest/v1/profiles", token, []map[string]any{
		{"id": user.ID, "email": user.Email, "full_name": user.FullName},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, "POST", "/rest/v1/projects", token, []map[string]any{
		{"name": "Board", "key": "BRD", "owner_id": user.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created []*models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created[0]
}

func TestIssues_InsertListPatch(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, user := signup(t, router, "dev@example.com")
	p := seedProject(t, router, token, user)

	// Insert.
	w := doJSON(t, router, "POST", "/rest/v1/issues", token, []map[string]any{
		{
			"title": "Fix login", "type": "bug", "status": "todo", "priority": "high",
			"project_id": p.ID, "reporter_id": user.ID,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 1)
	id := created[0].ID
	require.NotEmpty(t, id)

	// List requires a project filter.
	w = doJSON(t, router, "GET", "/rest/v1/issues", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// List by project carries the joined reporter profile.
	w = doJSON(t, router, "GET", "/rest/v1/issues?project_id=eq."+p.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Reporter)
	assert.Equal(t, "Test User", listed[0].Reporter.FullName)
	assert.Nil(t, listed[0].Assignee)

	// Fetch by id filter.
	w = doJSON(t, router, "GET", "/rest/v1/issues?id=eq."+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byID []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byID))
	require.Len(t, byID, 1)

	// Patch the status.
	w = doJSON(t, router, "PATCH", "/rest/v1/issues?id=eq."+id, token, map[string]any{
		"status": "in_review",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var patched []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patched))
	require.Len(t, patched, 1)
	assert.Equal(t, models.IssueStatusInReview, patched[0].Status)
}

func TestIssues_Insert_InvalidStatus(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, user := signup(t, router, "dev@example.com")
	p := seedProject(t, router, token, user)

	w := doJSON(t, router, "POST", "/rest/v1/issues", token, []map[string]any{
		{
			"title": "Bad", "type": "bug", "status": "archived", "priority": "high",
			"project_id": p.ID, "reporter_id": user.ID,
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIssues_Patch_InvalidStatus(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, _ := signup(t, router, "dev@example.com")

	w := doJSON(t, router, "PATCH", "/rest/v1/issues?id=eq.SOMEID", token, map[string]any{
		"status": "archived",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIssues_Patch_UnknownID(t *testing.T) {
	srv := setupTestServer(t)
	router := srv.Router()
	token, _ := signup(t, router, "dev@example.com")

	// PostgREST answers an empty result set, not 404.
	w := doJSON(t, router, "PATCH", "/rest/v1/issues?id=eq.NOPE", token, map[string]any{
		"status": "done",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var rows []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Empty(t, rows)
}
