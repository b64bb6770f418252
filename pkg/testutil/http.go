// Package testutil provides helpers shared by tests that talk to the fake
// backend or drive the client stack end to end.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request with a JSON body and an optional bearer
// token.
func NewJSONRequest(t testing.TB, method, path string, body any, token string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// DoRequest serves req with handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope is the decoded response wrapper.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// DecodeEnvelope unmarshals the recorder body.
func DecodeEnvelope[T any](t testing.TB, rr *httptest.ResponseRecorder) Envelope[T] {
	t.Helper()
	var env Envelope[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "failed to unmarshal response: %s", rr.Body.String())
	return env
}

// AssertSuccess asserts a 200 with success:true and returns the data.
func AssertSuccess[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, "unexpected status, body: %s", rr.Body.String())
	env := DecodeEnvelope[T](t, rr)
	require.True(t, env.Success, "expected success envelope, got error %q", env.Error)
	return env.Data
}

// AssertStatusAndError asserts the status and the envelope error text.
func AssertStatusAndError(t testing.TB, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status code")
	env := DecodeEnvelope[json.RawMessage](t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, message, env.Error)
}
