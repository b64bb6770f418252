package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"aiplatform/internal/models"
	"aiplatform/internal/platform/metrics"
	"aiplatform/pkg/platform/sentinel"
)

// failingBackend simulates unavailable durable storage.
type failingBackend struct{}

func (failingBackend) Load(context.Context) (Session, error) {
	return Session{}, errors.New("disk on fire")
}
func (failingBackend) Save(context.Context, Session) error { return errors.New("disk on fire") }
func (failingBackend) Delete(context.Context) error        { return errors.New("disk on fire") }

type StoreSuite struct {
	suite.Suite
	ctx     context.Context
	backend *MemoryBackend
	store   *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = NewMemoryBackend()
	s.store = New(
		WithBackend(s.backend),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func testUser() *models.User {
	return &models.User{ID: 1, Username: "alice", Email: "alice@example.com", Points: 100}
}

func signedToken(s *suite.Suite, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	s.Require().NoError(err)
	return signed
}

func (s *StoreSuite) TestSetAndClear() {
	s.Run("set stores token and user together", func() {
		s.Require().NoError(s.store.Set(s.ctx, "tok-1", testUser()))

		cur := s.store.Current()
		s.Equal("tok-1", cur.Token)
		s.Equal("alice", cur.User.Username)
		s.Equal("tok-1", s.store.Token(s.ctx))

		persisted, err := s.backend.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal("tok-1", persisted.Token)
		s.Equal("alice", persisted.User.Username)
	})

	s.Run("set rejects half a session", func() {
		err := s.store.Set(s.ctx, "", testUser())
		s.ErrorIs(err, sentinel.ErrInvalid)
		err = s.store.Set(s.ctx, "tok-2", nil)
		s.ErrorIs(err, sentinel.ErrInvalid)
		s.Equal("tok-1", s.store.Token(s.ctx), "failed set leaves previous session")
	})

	s.Run("clear empties memory and backend", func() {
		s.store.Clear(s.ctx)
		s.True(s.store.Current().Empty())
		s.Nil(s.store.User())
		_, err := s.backend.Load(s.ctx)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestUserIsCopied() {
	u := testUser()
	s.Require().NoError(s.store.Set(s.ctx, "tok", u))
	u.Points = 0

	s.Equal(100, s.store.User().Points)
	s.store.User().Points = 1
	s.Equal(100, s.store.User().Points)
}

func (s *StoreSuite) TestUpdateUser() {
	s.Run("no-op when signed out", func() {
		s.store.UpdateUser(s.ctx, testUser())
		s.True(s.store.Current().Empty())
	})

	s.Run("keeps token and replaces user", func() {
		s.Require().NoError(s.store.Set(s.ctx, "tok", testUser()))
		updated := testUser()
		updated.Points = 42
		s.store.UpdateUser(s.ctx, updated)

		s.Equal("tok", s.store.Token(s.ctx))
		s.Equal(42, s.store.User().Points)
		persisted, err := s.backend.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(42, persisted.User.Points)
	})
}

func (s *StoreSuite) TestInvalidate() {
	s.Run("clears when the sent token is current", func() {
		s.Require().NoError(s.store.Set(s.ctx, "tok-a", testUser()))
		s.True(s.store.Invalidate(s.ctx, "tok-a"))
		s.True(s.store.Current().Empty())
	})

	s.Run("keeps a newer session", func() {
		s.Require().NoError(s.store.Set(s.ctx, "tok-b", testUser()))
		s.False(s.store.Invalidate(s.ctx, "tok-a"))
		s.Equal("tok-b", s.store.Token(s.ctx))
	})

	s.Run("empty sent token clears any session", func() {
		s.True(s.store.Invalidate(s.ctx, ""))
		s.False(s.store.Invalidate(s.ctx, ""))
	})

	s.Run("concurrent callers clear exactly once", func() {
		s.Require().NoError(s.store.Set(s.ctx, "tok-c", testUser()))

		var cleared atomic.Int32
		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.store.Invalidate(s.ctx, "tok-c") {
					cleared.Add(1)
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), cleared.Load())
		s.True(s.store.Current().Empty())
	})
}

func (s *StoreSuite) TestLoad() {
	s.Run("restores persisted session", func() {
		s.Require().NoError(s.backend.Save(s.ctx, Session{Token: "persisted", User: testUser()}))
		restored := s.store.Load(s.ctx)
		s.Equal("persisted", restored.Token)
		s.Equal("persisted", s.store.Token(s.ctx))
	})

	s.Run("nothing persisted starts signed out", func() {
		s.Require().NoError(s.backend.Delete(s.ctx))
		s.True(s.store.Load(s.ctx).Empty())
	})

	s.Run("expired jwt is discarded", func() {
		token := signedToken(&s.Suite, time.Now().Add(-time.Minute))
		s.Require().NoError(s.backend.Save(s.ctx, Session{Token: token, User: testUser()}))

		s.True(s.store.Load(s.ctx).Empty())
		_, err := s.backend.Load(s.ctx)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("backend failure degrades to empty session", func() {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		store := New(
			WithBackend(failingBackend{}),
			WithMetrics(m),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		s.True(store.Load(s.ctx).Empty())
		s.Equal(1.0, testutil.ToFloat64(m.SessionFailures.WithLabelValues("load")))

		s.Require().NoError(store.Set(s.ctx, "mem-only", testUser()))
		s.Equal("mem-only", store.Token(s.ctx), "in-memory session survives save failure")
		s.Equal(1.0, testutil.ToFloat64(m.SessionFailures.WithLabelValues("save")))
	})
}

func (s *StoreSuite) TestTokenExpiry() {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := New(
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	s.Run("live jwt is returned", func() {
		token := signedToken(&s.Suite, now.Add(time.Hour))
		s.Require().NoError(store.Set(s.ctx, token, testUser()))
		s.Equal(token, store.Token(s.ctx))
	})

	s.Run("expired jwt reads as signed out", func() {
		token := signedToken(&s.Suite, now.Add(-time.Second))
		s.Require().NoError(store.Set(s.ctx, token, testUser()))
		s.Empty(store.Token(s.ctx))
		s.True(store.Current().Empty())
	})

	s.Run("opaque token never expires client side", func() {
		s.Require().NoError(store.Set(s.ctx, "opaque-token", testUser()))
		s.Equal("opaque-token", store.Token(s.ctx))
		_, ok := TokenExpiry("opaque-token")
		s.False(ok)
	})
}
