// Package session holds the single bearer credential that gates the panel.
//
// The credential is persisted to a file so a restarted panel keeps its
// operator signed in, mirroring how the browser build kept the token in
// local storage. Absence of the credential means unauthenticated,
// everywhere; no expiry is tracked client-side, expiry is discovered when
// a request comes back unauthorized.
package session

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultFileName is the file the credential is persisted under when no
// explicit path is configured.
const DefaultFileName = "agrovista-session"

// Store is the process-wide authentication state. It is safe for
// concurrent use; the upstream client reads it on every request and the
// login/logout/unauthorized paths write it.
type Store struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	path    string
	token   string
	onClear []func()
}

// Option configures a Store.
type Option func(*Store)

// WithPath sets the file the credential is persisted to.
func WithPath(path string) Option {
	return func(s *Store) { s.path = path }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store and loads any previously persisted credential.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
		path:   filepath.Join(os.TempDir(), DefaultFileName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if data, err := os.ReadFile(s.path); err == nil {
		s.token = strings.TrimSpace(string(data))
	} else if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to load persisted session", "path", s.path, "error", err)
	}

	return s
}

// Set persists the credential and marks the session authenticated.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	path := s.path
	s.mu.Unlock()

	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		s.logger.Warn("failed to persist session", "path", path, "error", err)
	}
}

// Clear removes the credential and marks the session unauthenticated.
// Registered OnClear observers are notified after the credential is gone,
// so an observer that re-checks IsActive sees the cleared state.
func (s *Store) Clear() {
	s.mu.Lock()
	already := s.token == ""
	s.token = ""
	path := s.path
	observers := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove persisted session", "path", path, "error", err)
	}

	if already {
		return
	}
	for _, fn := range observers {
		fn()
	}
}

// IsActive reports whether a credential is present.
func (s *Store) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the stored credential, or the empty string.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnClear registers an observer invoked whenever a present credential is
// cleared. Observers are called synchronously from Clear.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}
