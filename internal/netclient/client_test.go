package netclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/translateassist/internal/apperr"
)

func TestDoSetsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	resp, err := c.Do(c.R(context.Background()), http.MethodGet, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, seen, 36)
}

func TestDoClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		wantKind  apperr.Kind
		throttled bool
	}{
		{"too many requests", http.StatusTooManyRequests, map[string]string{"Retry-After": "5"}, apperr.KindRateLimited, true},
		{"service unavailable", http.StatusServiceUnavailable, nil, apperr.KindRateLimited, true},
		{"internal error", http.StatusInternalServerError, nil, apperr.KindUnavailable, false},
		{"unauthorized", http.StatusUnauthorized, nil, apperr.KindInvalidRequest, false},
		{"not found", http.StatusNotFound, nil, apperr.KindInvalidResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(time.Second)
			_, err := c.Do(c.R(context.Background()), http.MethodGet, srv.URL)
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.throttled, se.Throttled())
			assert.Equal(t, tt.wantKind, apperr.From(err).Kind)
			if tt.header["Retry-After"] != "" {
				assert.Equal(t, 5*time.Second, se.Hints.RetryAfter)
			}
		})
	}
}

func TestDoRequestTimeoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestTimeout)
	}))
	defer srv.Close()

	c := New(time.Second)
	_, err := c.Do(c.R(context.Background()), http.MethodGet, srv.URL)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, apperr.KindTimeout, apperr.From(err).Kind)
}

func TestDoClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(50 * time.Millisecond)
	_, err := c.Do(c.R(context.Background()), http.MethodGet, srv.URL)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDoCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(time.Second)
	_, err := c.Do(c.R(ctx), http.MethodGet, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperr.KindCancelled, apperr.From(err).Kind)
}

func TestDoOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(time.Second)
	_, err := c.Do(c.R(context.Background()), http.MethodGet, url)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestParseHints(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "3")
	h.Set("x-ratelimit-limit-requests", "30")
	h.Set("x-ratelimit-remaining-requests", "0")
	h.Set("x-ratelimit-reset-requests", "2m30s")
	h.Set("x-ratelimit-reset-tokens", "7.5")

	hints := ParseHints(h)
	assert.Equal(t, 3*time.Second, hints.RetryAfter)
	assert.Equal(t, 30, hints.LimitRequests)
	assert.Equal(t, 0, hints.RemainingRequests)
	assert.Equal(t, 150*time.Second, hints.ResetRequests)
	assert.Equal(t, 7500*time.Millisecond, hints.ResetTokens)
	assert.Equal(t, -1, hints.LimitTokens)
}

func TestParseRetryAfterDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v := now.Add(10 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 10*time.Second, parseRetryAfter(v, now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage", now))
}
