package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one logical API call. It is never mutated by the
// pipeline: the body is encoded once and every attempt is built from it.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any    // encoded as JSON when RawBody is nil
	RawBody     []byte // sent verbatim with ContentType
	ContentType string
	Header      http.Header
	SkipAuth    bool
}

// RequestOption adjusts a Request built by the verb helpers.
type RequestOption func(*Request)

// SkipAuth sends the request without a bearer token.
func SkipAuth() RequestOption {
	return func(r *Request) {
		r.SkipAuth = true
	}
}

// WithQuery sets query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(r *Request) {
		r.Query = q
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Add(key, value)
	}
}

// NewRequest builds a Request for the given verb.
func NewRequest(method, path string, body any, opts ...RequestOption) Request {
	r := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Request) encode() ([]byte, string, error) {
	if r.RawBody != nil {
		return r.RawBody, r.ContentType, nil
	}
	if r.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s %s body: %w", r.Method, r.Path, err)
	}
	return data, "application/json", nil
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
	Attempts   int
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
