package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/kanriapp/kanri/internal/models"
)

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string           `json:"access_token"`
	TokenType    string           `json:"token_type"`
	ExpiresAt    time.Time        `json:"expires_at"`
	RefreshToken string           `json:"refresh_token"`
	User         *models.Identity `json:"user"`
}

// Expired reports whether the session's access token has lapsed.
func (s *Session) Expired() bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// tokenResponse is the wire shape of the auth token/signup endpoints.
type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"`
	RefreshToken string           `json:"refresh_token"`
	User         *models.Identity `json:"user"`
}

func (r *tokenResponse) session() *Session {
	return &Session{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
}

// SignIn performs a password credential check. On success the client
// holds the new session and auth-state subscribers are notified.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	q := map[string][]string{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, body, &resp); err != nil {
		return nil, err
	}
	s := resp.session()
	c.setSession(s)
	return s, nil
}

// SignUp creates a backend account. The auxiliary full name travels in
// the user metadata. On success the client holds the new session.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, body, &resp); err != nil {
		return nil, err
	}
	s := resp.session()
	c.setSession(s)
	return s, nil
}

// SignOut terminates the session server-side and clears the held session.
// Subscribers are notified with a nil session even if the remote call
// fails; locally we are signed out either way.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil)
	c.setSession(nil)
	return err
}

// FetchUser returns the identity for the current session from the
// backend, or ErrNoSession when signed out.
func (c *Client) FetchUser(ctx context.Context) (*models.Identity, error) {
	if c.CurrentSession() == nil {
		return nil, ErrNoSession
	}
	var user models.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RestoreSession installs a previously saved session (e.g. loaded from
// the session cache file) and notifies subscribers. An expired session
// is ignored and subscribers see a nil state.
func (c *Client) RestoreSession(s *Session) {
	if s.Expired() {
		s = nil
	}
	c.setSession(s)
}
