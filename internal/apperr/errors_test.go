package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classified struct{}

func (classified) Error() string { return "throttled" }

func (classified) AppError() *Error {
	return RateLimited("machine-translator", 3*time.Second, nil)
}

func TestBanner(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"offline", Offline(nil), "Offline - showing cache when possible"},
		{"rate limited with hint", RateLimited("fast-llm", 4*time.Second, nil), "Provider busy - retrying in 4s"},
		{"rate limited without hint", RateLimited("fast-llm", 0, nil), "Provider busy - retrying shortly"},
		{"circuit open", CircuitOpen("fast-llm", 42*time.Second), "LLM paused (fast-llm) - auto-retry in 42s"},
		{"circuit open rounds up to one second", CircuitOpen("fast-llm", 200*time.Millisecond), "LLM paused (fast-llm) - auto-retry in 1s"},
		{"invalid model output", InvalidModelOutput("fast-llm", nil), "LLM output invalid - using MT only"},
		{"invalid request", InvalidRequest("empty term"), "Invalid request - empty term"},
		{"missing key", MissingCredentials("gemini"), "Missing API key for gemini. Add it to the config file."},
		{"validation", Validation("Term too long"), "Term too long"},
		{"storage", Storage(errors.New("disk full")), "Storage error - operation skipped"},
		{"unknown", Unknown(errors.New("boom")), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Banner())
		})
	}
}

func TestFrom(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("wrapped typed error", func(t *testing.T) {
		orig := Timeout("fast-llm", nil)
		got := From(fmt.Errorf("decide: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("classifier", func(t *testing.T) {
		got := From(fmt.Errorf("call: %w", classified{}))
		require.NotNil(t, got)
		assert.Equal(t, KindRateLimited, got.Kind)
		assert.Equal(t, 3*time.Second, got.RetryAfter)
	})

	t.Run("context cancelled", func(t *testing.T) {
		assert.Equal(t, KindCancelled, From(context.Canceled).Kind)
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		assert.Equal(t, KindTimeout, From(context.DeadlineExceeded).Kind)
	})

	t.Run("plain error", func(t *testing.T) {
		got := From(errors.New("weird"))
		assert.Equal(t, KindUnknown, got.Kind)
		assert.Equal(t, "weird", got.Banner())
	})
}

func TestRetriable(t *testing.T) {
	retriable := []Kind{KindRateLimited, KindCircuitOpen, KindUnavailable, KindTimeout}
	for _, k := range retriable {
		assert.True(t, k.Retriable(), k)
	}

	terminal := []Kind{KindOffline, KindInvalidModelOutput, KindDecodingFailed, KindCancelled, KindUnknown}
	for _, k := range terminal {
		assert.False(t, k.Retriable(), k)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := Unavailable("machine-translator", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnavailable, KindOf(fmt.Errorf("outer: %w", err)))
	assert.Contains(t, err.Error(), "socket closed")
}
