package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"aiplatform/pkg/requestcontext"
)

// Default user-facing messages.
const (
	MsgValidation     = "invalid request parameters"
	MsgAuthentication = "authentication failed, please log in again"
	MsgAuthorization  = "you do not have permission to perform this operation"
	MsgServer         = "server error, please try again later"
	MsgNetwork        = "network connection failed, please check your network"
	MsgBusiness       = "the operation could not be completed"
	MsgUnknown        = "an unknown error occurred"
)

// httpFailure is a completed exchange with an error status.
type httpFailure interface {
	error
	HTTPStatus() int
	ResponseBody() []byte
}

// transportFailure is a request that got no response.
type transportFailure interface {
	error
	NoResponse() bool
}

type correlated interface {
	CorrelationID() string
}

// Normalize classifies any failure into a StandardError. An existing
// StandardError in the chain is returned as is. Normalize never panics; a
// panic during classification yields an UNKNOWN error.
func Normalize(ctx context.Context, v any) (out *StandardError) {
	defer func() {
		if r := recover(); r != nil {
			out = build(ctx, TypeUnknown, LevelMedium, CodeUnknown, MsgUnknown, nil, 0, "", nil)
		}
	}()

	switch raw := v.(type) {
	case nil:
		return build(ctx, TypeUnknown, LevelMedium, CodeUnknown, MsgUnknown, nil, 0, "", nil)
	case string:
		msg := raw
		if msg == "" {
			msg = MsgUnknown
		}
		return build(ctx, TypeUnknown, LevelMedium, CodeUnknown, msg, nil, 0, "", nil)
	case error:
		return normalizeError(ctx, raw)
	default:
		return build(ctx, TypeUnknown, LevelMedium, CodeUnknown, MsgUnknown,
			map[string]any{"value": fmt.Sprintf("%v", raw)}, 0, "", nil)
	}
}

func normalizeError(ctx context.Context, err error) *StandardError {
	if se, ok := As(err); ok {
		return se
	}

	reqID := ""
	var c correlated
	if errors.As(err, &c) {
		reqID = c.CorrelationID()
	}

	var hf httpFailure
	if errors.As(err, &hf) {
		return fromHTTP(ctx, hf.HTTPStatus(), hf.ResponseBody(), reqID, err)
	}

	var tf transportFailure
	if errors.As(err, &tf) && tf.NoResponse() {
		return build(ctx, TypeNetwork, LevelHigh, CodeNetwork, MsgNetwork, nil, 0, reqID, err)
	}

	return build(ctx, TypeUnknown, LevelMedium, CodeRuntime, err.Error(),
		map[string]any{"errorType": fmt.Sprintf("%T", err)}, 0, reqID, err)
}

func fromHTTP(ctx context.Context, status int, body []byte, reqID string, cause error) *StandardError {
	var parsed gjson.Result
	var details any
	if gjson.ValidBytes(body) {
		parsed = gjson.ParseBytes(body)
		details = parsed.Value()
	} else if len(body) > 0 {
		details = string(body)
	}
	serverMsg := firstString(parsed, "message", "error")

	switch {
	case status == http.StatusBadRequest:
		if data := parsed.Get("data"); data.IsObject() {
			details = data.Value()
		}
		return build(ctx, TypeValidation, LevelMedium, CodeValidation, orDefault(serverMsg, MsgValidation), details, status, reqID, cause)
	case status == http.StatusUnauthorized:
		return build(ctx, TypeAuthentication, LevelHigh, CodeAuthentication, MsgAuthentication, details, status, reqID, cause)
	case status == http.StatusForbidden:
		return build(ctx, TypeAuthorization, LevelHigh, CodeAuthorization, MsgAuthorization, details, status, reqID, cause)
	case status >= http.StatusInternalServerError:
		return build(ctx, TypeServer, LevelCritical, CodeServer, MsgServer, details, status, reqID, cause)
	default:
		code := orDefault(parsed.Get("code").String(), CodeBusiness)
		return build(ctx, TypeBusiness, LevelMedium, code, orDefault(serverMsg, MsgBusiness), details, status, reqID, cause)
	}
}

func build(ctx context.Context, t Type, level Level, code, msg string, details any, status int, reqID string, cause error) *StandardError {
	if reqID == "" {
		reqID = newCorrelationID()
	}
	return &StandardError{
		Type:      t,
		Level:     level,
		Code:      code,
		Message:   msg,
		Details:   details,
		Status:    status,
		Timestamp: requestcontext.Now(ctx),
		RequestID: reqID,
		cause:     cause,
	}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func newCorrelationID() string {
	return "err_" + uuid.NewString()
}
