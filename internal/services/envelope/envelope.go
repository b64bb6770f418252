// Package envelope unwraps the backend's {success, message, data, error}
// response shape and routes every failure through the error handler once.
package envelope

//go:generate mockgen -source=envelope.go -destination=mocks/mocks.go -package=mocks Requester,ErrorHandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"aiplatform/internal/errorhandler"
	"aiplatform/internal/pipeline"
	"aiplatform/pkg/apierror"
)

// Requester sends one request through the pipeline.
type Requester interface {
	Do(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// ErrorHandler surfaces failures to the user.
type ErrorHandler interface {
	Handle(ctx context.Context, v any, opts ...errorhandler.CallOption) *apierror.StandardError
	Business(ctx context.Context, code, message string, details any, opts ...errorhandler.CallOption) *apierror.StandardError
}

// Envelope is the response wrapper every endpoint uses.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Call runs req and returns the envelope data. Transport and HTTP failures
// are normalized by h; a success:false body becomes a BUSINESS error. The
// returned error is always a *apierror.StandardError.
func Call[T any](ctx context.Context, r Requester, h ErrorHandler, req pipeline.Request, opts ...errorhandler.CallOption) (T, error) {
	var zero T

	resp, err := r.Do(ctx, req)
	if err != nil {
		return zero, h.Handle(ctx, err, opts...)
	}
	if len(resp.Body) == 0 {
		return zero, nil
	}

	// A body without a success flag is the payload itself.
	if !gjson.GetBytes(resp.Body, "success").Exists() {
		var data T
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			return zero, h.Handle(ctx, decodeError(req, resp, err), opts...)
		}
		return data, nil
	}

	var env Envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return zero, h.Handle(ctx, decodeError(req, resp, err), opts...)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return zero, h.Business(ctx, env.Code, msg, nil, opts...)
	}
	return env.Data, nil
}

func decodeError(req pipeline.Request, resp *pipeline.Response, err error) error {
	return fmt.Errorf("decode %s %s response (request %s): %w", req.Method, req.Path, resp.RequestID, err)
}
