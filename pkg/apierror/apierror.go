// Package apierror defines StandardError, the single error shape callers of
// the platform client see, and the classification that produces it.
package apierror

import (
	"errors"
	"fmt"
	"time"
)

// Type is the failure category.
type Type string

const (
	TypeNetwork        Type = "NETWORK"
	TypeAuthentication Type = "AUTHENTICATION"
	TypeAuthorization  Type = "AUTHORIZATION"
	TypeValidation     Type = "VALIDATION"
	TypeBusiness       Type = "BUSINESS"
	TypeServer         Type = "SERVER"
	TypeUnknown        Type = "UNKNOWN"
)

// Level is the severity; it drives how loudly the error is surfaced.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Default codes per category.
const (
	CodeNetwork        = "NETWORK_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeValidation     = "VALIDATION_ERROR"
	CodeBusiness       = "BUSINESS_ERROR"
	CodeServer         = "SERVER_ERROR"
	CodeRuntime        = "RUNTIME_ERROR"
	CodeUnknown        = "UNKNOWN_ERROR"
)

// StandardError is the normalized failure. Treat it as read-only once built;
// it is passed by pointer only so errors.As can find it.
type StandardError struct {
	Type      Type      `json:"type"`
	Level     Level     `json:"level"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the raw failure that was classified.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Option sets optional fields on New.
type Option func(*StandardError)

func WithDetails(details any) Option {
	return func(e *StandardError) {
		e.Details = details
	}
}

func WithRequestID(id string) Option {
	return func(e *StandardError) {
		e.RequestID = id
	}
}

func WithCause(err error) Option {
	return func(e *StandardError) {
		e.cause = err
	}
}

func WithTimestamp(t time.Time) Option {
	return func(e *StandardError) {
		e.Timestamp = t
	}
}

// New builds a StandardError directly, e.g. for an envelope that reports
// success=false on a 2xx response.
func New(t Type, level Level, code, message string, opts ...Option) *StandardError {
	e := &StandardError{
		Type:      t,
		Level:     level,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.RequestID == "" {
		e.RequestID = newCorrelationID()
	}
	return e
}

// As finds a StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasType reports whether err is a StandardError of type t.
func HasType(err error, t Type) bool {
	se, ok := As(err)
	return ok && se.Type == t
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code string) bool {
	se, ok := As(err)
	return ok && se.Code == code
}
