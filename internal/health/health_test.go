package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register("store", ok))
	require.NoError(t, r.Register("llm", ok))
	assert.Error(t, r.Register("store", ok))
	assert.Error(t, r.Register("", ok))
	assert.Error(t, r.Register("nil", nil))
	assert.Equal(t, []string{"llm", "store"}, r.Names())

	report := r.Check(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, map[string]string{"llm": "ok", "store": "ok"}, report.Components)

	require.NoError(t, r.Register("github", func(context.Context) error { return errors.New("rate limited") }))
	report = r.Check(context.Background())
	assert.False(t, report.Healthy())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "error: rate limited", report.Components["github"])
	assert.Equal(t, "ok", report.Components["store"])
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	require.NoError(t, r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	report := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Components["slow"], "deadline exceeded")
}

func TestRegistryRunsChecksConcurrently(t *testing.T) {
	r := NewRegistry(time.Second)
	// Each checker waits for the other to start; run one at a time they would time out
	started := map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})}
	wait := func(self, other string) Checker {
		return func(ctx context.Context) error {
			close(started[self])
			select {
			case <-started[other]:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	require.NoError(t, r.Register("a", wait("a", "b")))
	require.NoError(t, r.Register("b", wait("b", "a")))
	// A failing check does not cut the others short
	require.NoError(t, r.Register("broken", func(context.Context) error { return errors.New("down") }))
	require.NoError(t, r.Register("slow", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}))

	report := r.Check(context.Background())
	assert.Equal(t, map[string]string{"a": "ok", "b": "ok", "broken": "error: down", "slow": "ok"}, report.Components)
	assert.Equal(t, StatusDegraded, report.Status)
}

func TestServerHealthEndpoint(t *testing.T) {
	r := NewRegistry(time.Second)
	require.NoError(t, r.Register("store", ok))
	srv := NewServer(r)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Components["store"])

	require.NoError(t, r.Register("llm", func(context.Context) error { return errors.New("circuit breaker is open") }))
	resp2, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)

	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)

	resp3, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}
