// Package auth wraps the /auth endpoints and keeps the session in step with
// them.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/envelope"
	"aiplatform/pkg/apierror"
)

// SessionStore is the part of the session the auth flow writes.
type SessionStore interface {
	Set(ctx context.Context, token string, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User)
	Clear(ctx context.Context)
}

type Service struct {
	requester envelope.Requester
	errors    envelope.ErrorHandler
	session   SessionStore
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(requester envelope.Requester, errs envelope.ErrorHandler, session SessionStore, opts ...Option) (*Service, error) {
	if requester == nil {
		return nil, errors.New("requester is required")
	}
	if errs == nil {
		return nil, errors.New("error handler is required")
	}
	if session == nil {
		return nil, errors.New("session store is required")
	}
	s := &Service{requester: requester, errors: errs, session: session, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account. It does not log the new user in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return envelope.Call[*models.User](ctx, s.requester, s.errors,
		pipeline.NewRequest(http.MethodPost, "/auth/register", req, pipeline.SkipAuth()))
}

// Login authenticates and stores the token and user together.
func (s *Service) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	res, err := envelope.Call[*models.AuthResult](ctx, s.requester, s.errors,
		pipeline.NewRequest(http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, pipeline.SkipAuth()))
	if err != nil {
		return nil, err
	}
	if res == nil || res.Token == "" || res.User == nil {
		return nil, s.errors.Handle(ctx, apierror.New(apierror.TypeServer, apierror.LevelCritical, apierror.CodeServer,
			"login response is missing the token or user"))
	}
	if err := s.session.Set(ctx, res.Token, res.User); err != nil {
		return nil, s.errors.Handle(ctx, err)
	}
	s.logger.InfoContext(ctx, "logged in", "user_id", res.User.ID)
	return res, nil
}

// Me fetches the current user and refreshes the cached copy.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	u, err := envelope.Call[*models.User](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/auth/me", nil))
	if err != nil {
		return nil, err
	}
	if u != nil {
		s.session.UpdateUser(ctx, u)
	}
	return u, nil
}

// Logout drops the local session. The backend keeps no server-side session.
func (s *Service) Logout(ctx context.Context) {
	s.session.Clear(ctx)
	s.logger.InfoContext(ctx, "logged out")
}
