// Package store holds the client-side state for the board: the current
// session, the project list, and the per-project issue list. Each store
// owns its in-memory state exclusively and mutates it only after the
// backend acknowledges an operation; there are no optimistic writes.
package store

import (
	"context"
	"sync"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/models"
)

// SessionStore tracks the current authenticated identity. It subscribes
// to the client's auth-state changes on construction and reflects every
// sign-in/sign-out until Close.
type SessionStore struct {
	client *backend.Client

	mu       sync.Mutex
	identity *models.Identity
	loading  bool
	closed   bool
	unsub    func()
}

// NewSessionStore builds the store, subscribes to auth-state changes,
// and kicks off the initial asynchronous session fetch. The store is in
// the loading state until that first fetch resolves.
func NewSessionStore(ctx context.Context, client *backend.Client) *SessionStore {
	s := &SessionStore{client: client, loading: true}
	s.unsub = client.OnAuthStateChange(s.onAuthState)

	go s.initialFetch(ctx)
	return s
}

func (s *SessionStore) initialFetch(ctx context.Context) {
	user, err := s.client.FetchUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loading = false
	if err != nil {
		// Signed out, or the cached session no longer checks out.
		s.identity = nil
		return
	}
	s.identity = user
}

// onAuthState applies a session-change notification from the client.
func (s *SessionStore) onAuthState(session *backend.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loading = false
	if session == nil {
		s.identity = nil
		return
	}
	s.identity = session.User
}

// Identity returns the current identity, or nil when signed out.
func (s *SessionStore) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Loading reports whether the initial session fetch is still in flight.
func (s *SessionStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SignIn issues a credential check. The identity itself arrives through
// the auth-state subscription, not the return value. The returned error
// message is human-readable and safe to show the user.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	_, err := s.client.SignIn(ctx, email, password)
	return err
}

// SignUp creates a backend account, then a second write creates the
// application-level profile row. When that second write fails its error
// is surfaced but the already-created account stays in place; there is
// no compensating rollback.
func (s *SessionStore) SignUp(ctx context.Context, email, password, fullName string) error {
	session, err := s.client.SignUp(ctx, email, password, fullName)
	if err != nil {
		return err
	}

	user := session.User
	if user == nil {
		return nil
	}
	return s.client.InsertProfile(ctx, backend.NewProfile{
		ID:       user.ID,
		Email:    user.Email,
		FullName: fullName,
	})
}

// SignOut terminates the session.
func (s *SessionStore) SignOut(ctx context.Context) error {
	return s.client.SignOut(ctx)
}

// Close unsubscribes from auth-state changes. No state updates are
// applied after Close returns.
func (s *SessionStore) Close() {
	s.mu.Lock()
	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
