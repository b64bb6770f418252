// Package session holds the client's current authentication state.
//
// A Session pairs the bearer token with the identity it was issued for. The
// pair is replaced as a whole through an atomic pointer, so readers never
// observe a token from one login next to the user from another. A Backend
// mirrors the pair to durable storage under two keys, token and user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"aiplatform/internal/models"
	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/platform/sentinel"
)

// Session is the authenticated state: both fields set or both empty.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Empty reports whether no one is logged in.
func (s Session) Empty() bool {
	return s.Token == ""
}

// Backend persists a session. Load returns sentinel.ErrNotFound when nothing
// is stored and sentinel.ErrCorrupt when only part of the pair is present.
type Backend interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}

// Store is the process-wide session holder.
type Store struct {
	current atomic.Pointer[Session]
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBackend sets the durable backend. Without one the session lives in memory only.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		backend: NewMemoryBackend(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Session{})
	return s
}

// Load restores the persisted session. Backend failures leave the store empty
// and are logged; they never reach the caller.
func (s *Store) Load(ctx context.Context) Session {
	restored, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		restored = Session{}
	case err != nil:
		s.metrics.IncSessionFailure("load")
		s.logger.WarnContext(ctx, "session restore failed, starting signed out", "error", err)
		restored = Session{}
	case restored.Token == "" || restored.User == nil:
		restored = Session{}
	case tokenExpired(restored.Token, s.now()):
		s.logger.InfoContext(ctx, "persisted session token expired")
		s.deleteDurable(ctx)
		restored = Session{}
	}
	s.current.Store(&restored)
	return restored
}

// Current returns a snapshot of the session.
func (s *Store) Current() Session {
	return *s.current.Load()
}

// Token returns the bearer token, or "" when signed out or expired.
func (s *Store) Token(ctx context.Context) string {
	cur := s.current.Load()
	if cur.Empty() {
		return ""
	}
	if tokenExpired(cur.Token, s.now()) {
		s.Invalidate(ctx, cur.Token)
		return ""
	}
	return cur.Token
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *models.User {
	cur := s.current.Load()
	if cur.User == nil {
		return nil
	}
	u := *cur.User
	return &u
}

// Set replaces the session with a new token and user. Persistence failures are
// logged and the in-memory session is kept.
func (s *Store) Set(ctx context.Context, token string, user *models.User) error {
	if token == "" || user == nil {
		return fmt.Errorf("token and user are required: %w", sentinel.ErrInvalid)
	}
	u := *user
	next := &Session{Token: token, User: &u}
	s.current.Store(next)

	if err := s.backend.Save(ctx, *next); err != nil {
		s.metrics.IncSessionFailure("save")
		s.logger.WarnContext(ctx, "session persist failed, keeping in memory", "error", err)
	}
	return nil
}

// UpdateUser swaps the user of the current session, keeping the token.
// It is a no-op when signed out.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) {
	if user == nil {
		return
	}
	for {
		cur := s.current.Load()
		if cur.Empty() {
			return
		}
		u := *user
		next := &Session{Token: cur.Token, User: &u}
		if s.current.CompareAndSwap(cur, next) {
			if err := s.backend.Save(ctx, *next); err != nil {
				s.metrics.IncSessionFailure("save")
				s.logger.WarnContext(ctx, "session persist failed, keeping in memory", "error", err)
			}
			return
		}
	}
}

// Clear signs out unconditionally.
func (s *Store) Clear(ctx context.Context) {
	s.current.Store(&Session{})
	s.deleteDurable(ctx)
}

// Invalidate clears the session only if it still holds sentToken (any
// non-empty session when sentToken is ""). Exactly one of several concurrent
// callers observing the same token gets true.
func (s *Store) Invalidate(ctx context.Context, sentToken string) bool {
	for {
		cur := s.current.Load()
		if cur.Empty() {
			return false
		}
		if sentToken != "" && cur.Token != sentToken {
			return false
		}
		if s.current.CompareAndSwap(cur, &Session{}) {
			s.deleteDurable(ctx)
			return true
		}
	}
}

func (s *Store) deleteDurable(ctx context.Context) {
	if err := s.backend.Delete(ctx); err != nil {
		s.metrics.IncSessionFailure("delete")
		s.logger.WarnContext(ctx, "session delete failed", "error", err)
	}
}
