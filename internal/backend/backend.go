// Package backend is a thin client for the hosted project-management
// backend: a GoTrue-compatible auth service plus a PostgREST-compatible
// table API over the projects, issues, and profiles collections.
//
// The client owns no data of its own. It holds the current auth session,
// notifies subscribers when that session changes, and runs straight
// select/insert/update calls; all durability, filtering, and row-level
// authorization live server-side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Sentinel errors callers branch on.
var (
	ErrNoSession = errors.New("no active session")
	ErrNotFound  = errors.New("row not found")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Config holds the connection settings for a hosted backend.
type Config struct {
	// URL is the backend base URL, e.g. https://abc.example.co or
	// http://localhost:8765 for a local dev server.
	URL string
	// APIKey is the publishable (anon) key sent with every request.
	APIKey string
	// HTTPClient overrides the default client; mainly for tests.
	HTTPClient *http.Client
}

// Client is a stateful backend client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu        sync.Mutex
	session   *Session
	listeners map[int]func(*Session)
	nextSub   int
}

// New creates a Client. No network traffic happens until the first call.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		http:      hc,
		listeners: map[int]func(*Session){},
	}
}

// OnAuthStateChange registers fn to be called whenever the session changes
// (sign-in, sign-out, restore). The returned func unsubscribes; after it
// returns, fn is never called again.
func (c *Client) OnAuthStateChange(fn func(*Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setSession swaps the current session and notifies subscribers.
func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	fns := make([]func(*Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// CurrentSession returns the held session, or nil when signed out.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// accessToken returns the bearer token for requests: the session token
// when signed in, the anon key otherwise.
func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session.AccessToken
	}
	return c.apiKey
}

// do runs one request against the backend and decodes a JSON response
// into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError extracts a human-readable message from an error body.
// The auth and table services use slightly different shapes, so try the
// known keys in order.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(data, &body)

	msg := body.Message
	for _, alt := range []string{body.Msg, body.ErrorDescription, body.Error} {
		if msg == "" {
			msg = alt
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
