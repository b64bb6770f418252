// Package user wraps the /user profile endpoints.
package user

import (
	"context"
	"errors"
	"net/http"

	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/envelope"
)

// UserCache receives fresh copies of the signed-in user.
type UserCache interface {
	UpdateUser(ctx context.Context, user *models.User)
}

type Service struct {
	requester envelope.Requester
	errors    envelope.ErrorHandler
	cache     UserCache
}

func New(requester envelope.Requester, errs envelope.ErrorHandler, cache UserCache) (*Service, error) {
	if requester == nil {
		return nil, errors.New("requester is required")
	}
	if errs == nil {
		return nil, errors.New("error handler is required")
	}
	return &Service{requester: requester, errors: errs, cache: cache}, nil
}

func (s *Service) Profile(ctx context.Context) (*models.User, error) {
	u, err := envelope.Call[*models.User](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/user/profile", nil))
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// UpdateProfile saves the non-empty fields of upd and returns the stored user.
func (s *Service) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	u, err := envelope.Call[*models.User](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodPut, "/user/profile", upd))
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// Points returns the server-side balance.
func (s *Service) Points(ctx context.Context) (int, error) {
	return envelope.Call[int](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/user/points", nil))
}

func (s *Service) remember(ctx context.Context, u *models.User) {
	if s.cache != nil && u != nil {
		s.cache.UpdateUser(ctx, u)
	}
}
