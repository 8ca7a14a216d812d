package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastRetry keeps retry tests quick
func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

// openAIStatusError builds the error the SDK returns for a non-2xx reply
func openAIStatusError(code int) *openai.Error {
	req := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	return &openai.Error{StatusCode: code, Request: req, Response: &http.Response{StatusCode: code, Request: req}}
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"anthropic 429", &anthropic.Error{StatusCode: http.StatusTooManyRequests}, true},
		{"anthropic 529", &anthropic.Error{StatusCode: 529}, true},
		{"anthropic 400", &anthropic.Error{StatusCode: http.StatusBadRequest}, false},
		{"anthropic 401", &anthropic.Error{StatusCode: http.StatusUnauthorized}, false},
		{"openai 503", openAIStatusError(http.StatusServiceUnavailable), true},
		{"openai 404", openAIStatusError(http.StatusNotFound), false},
		{"openai 429", openAIStatusError(http.StatusTooManyRequests), true},
		{"wrapped openai 502", fmt.Errorf("openai: %w", openAIStatusError(http.StatusBadGateway)), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"plain", errors.New("openai returned empty response"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetriableError(tt.err))
		})
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 2, 20*time.Millisecond, quietLogger())
	assert.Equal(t, CircuitClosed, cb.GetState())
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.GetState())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	// Failure while half-open reopens immediately
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.GetState())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())

	state, failures, successes := cb.GetMetrics()
	assert.Equal(t, CircuitClosed, state)
	assert.Zero(t, failures)
	assert.Zero(t, successes)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
	assert.Equal(t, "UNKNOWN", CircuitState(42).String())
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	log := quietLogger()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, fastRetry(), nil, log, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return openAIStatusError(http.StatusBadGateway)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, fastRetry(), nil, log, "op", func(context.Context) error {
			calls++
			return openAIStatusError(http.StatusInternalServerError)
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "after 3 attempts")
		var oe *openai.Error
		assert.ErrorAs(t, err, &oe)
	})

	t.Run("non-retriable stops immediately", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("bad request")
		err := retryWithBackoff(ctx, fastRetry(), nil, log, "op", func(context.Context) error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("open circuit blocks the call", func(t *testing.T) {
		cb := NewCircuitBreaker("test", 1, 1, time.Hour, log)
		cb.RecordFailure()
		called := false
		err := retryWithBackoff(ctx, fastRetry(), cb, log, "op", func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("canceled context aborts backoff", func(t *testing.T) {
		cfg := fastRetry()
		cfg.InitialBackoff = time.Hour
		cfg.MaxBackoff = time.Hour
		cctx, cancel := context.WithCancel(ctx)
		err := retryWithBackoff(cctx, cfg, nil, log, "op", func(context.Context) error {
			cancel()
			return openAIStatusError(http.StatusServiceUnavailable)
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
