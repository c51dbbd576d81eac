package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid api key"), false},
		{"explicit", NewTransientError(errors.New("x")), true},
		{"wrapped status 429", eris.Wrap(&StatusError{StatusCode: 429}, "tavily: search"), true},
		{"wrapped status 401", eris.Wrap(&StatusError{StatusCode: 401}, "tavily: search"), false},
		{"conn reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{"message heuristic", errors.New("read tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func response(code int, retryAfter string) *http.Response {
	h := http.Header{}
	if retryAfter != "" {
		h.Set("Retry-After", retryAfter)
	}
	return &http.Response{StatusCode: code, Header: h}
}

func TestHTTPStatusError(t *testing.T) {
	err := HTTPStatusError("tavily", response(429, "7"), []byte("slow down\n"))
	assert.True(t, IsTransient(err))
	assert.Equal(t, "tavily: unexpected status 429: slow down", err.Error())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 429, se.StatusCode)
	assert.Equal(t, 7*time.Second, se.RetryAfter)

	err = HTTPStatusError("jina", response(401, ""), []byte("unauthorized"))
	assert.False(t, IsTransient(err))
}

func TestHTTPStatusError_IgnoresDateRetryAfterAndTruncates(t *testing.T) {
	err := HTTPStatusError("perplexity", response(503, "Wed, 21 Oct 2026 07:28:00 GMT"), []byte(strings.Repeat("x", 500)))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.RetryAfter)
	assert.Len(t, se.Body, maxErrorBody)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}
