package syncclient

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wishsync/cmd/internal/owner"
)

// Session holds the client's owner credential. It is created once, initialized
// from its CredentialStore, and passed to every component that needs it.
// A zero-credential session is anonymous and still works on the public surface.
type Session struct {
	log   *slog.Logger
	store CredentialStore
	now   func() time.Time

	mu    sync.RWMutex
	token string
}

// NewSession binds a session to store. log and now may be nil.
func NewSession(log *slog.Logger, store CredentialStore, now func() time.Time) (*Session, error) {
	if store == nil {
		return nil, errors.New("syncclient: nil credential store")
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Session{log: log, store: store, now: now}, nil
}

// Init loads the persisted credential. Tokens that are expired or carry no
// readable expiry are discarded and cleared from the store.
func (s *Session) Init() error {
	tok, err := s.store.Load()
	if err != nil {
		return err
	}
	tok = strings.TrimSpace(tok)

	if tok != "" {
		exp, ok := owner.ExpiresAt(tok)
		if !ok || !exp.After(s.now()) {
			s.log.Info("session.credential.discarded", "expired", ok)
			if err := s.store.Clear(); err != nil {
				return err
			}
			tok = ""
		}
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Login stores a new bearer token.
func (s *Session) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return owner.ErrNoToken
	}
	if err := s.store.Save(token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Logout forgets the credential in memory and in the store.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return s.store.Clear()
}

// Bearer returns the current token, or "" when anonymous.
func (s *Session) Bearer() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a credential is held.
func (s *Session) LoggedIn() bool { return s.Bearer() != "" }
