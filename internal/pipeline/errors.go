package pipeline

import (
	"errors"
	"fmt"
)

// ErrUploadTooLarge is returned before sending a multipart body over the limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// HTTPError is a completed exchange with a non-2xx status.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	RequestID  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *HTTPError) HTTPStatus() int       { return e.StatusCode }
func (e *HTTPError) ResponseBody() []byte  { return e.Body }
func (e *HTTPError) CorrelationID() string { return e.RequestID }
func (e *HTTPError) Retryable() bool       { return e.StatusCode >= 500 && e.StatusCode <= 599 }
func (e *HTTPError) Unauthenticated() bool { return e.StatusCode == 401 }

// NetworkError is a request that was sent but produced no response.
type NetworkError struct {
	Method    string
	Path      string
	RequestID string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: no response: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error         { return e.Err }
func (e *NetworkError) NoResponse() bool      { return true }
func (e *NetworkError) CorrelationID() string { return e.RequestID }

// IsRetryable reports whether the pipeline would retry err.
func IsRetryable(err error) bool {
	_, ok := retryReason(err)
	return ok
}

func retryReason(err error) (string, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Retryable() {
			return "server_error", true
		}
		return "", false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network_error", true
	}
	return "", false
}
