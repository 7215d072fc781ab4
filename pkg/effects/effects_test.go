package effects_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	l := effects.NewLogging(nil)

	require.NoError(t, l.ReduceTraffic(t.Context(), "feature.a", "global", 100, 80))
	require.NoError(t, l.Transform(t.Context(), "feature.a"))
}

func TestNewWebhook_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := effects.NewWebhook("")
	require.ErrorIs(t, err, effects.ErrNoWebhookURL)
}

func TestWebhook_PostsPayload(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []effects.Payload
		tokens   []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload effects.Payload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		mu.Lock()
		received = append(received, payload)
		tokens = append(tokens, r.Header.Get("Authorization"))
		mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	hook, err := effects.NewWebhook(server.URL,
		effects.WithHeader("Authorization", "Bearer secret"),
		effects.WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	require.NoError(t, hook.ReduceTraffic(t.Context(), "feature.a", "canary", 100, 80))
	require.NoError(t, hook.Transform(t.Context(), "feature.b"))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, received, 2)
	assert.Equal(t, effects.KindReduceTraffic, received[0].Kind)
	assert.Equal(t, "canary", received[0].Stage)
	require.NotNil(t, received[0].To)
	assert.Equal(t, 80, *received[0].To)
	assert.Equal(t, at, received[0].RequestedAt)
	assert.Equal(t, effects.KindTransform, received[1].Kind)
	assert.Nil(t, received[1].From)
	assert.Equal(t, []string{"Bearer secret", "Bearer secret"}, tokens)
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	hook, err := effects.NewWebhook(server.URL, effects.WithRetry(effects.RetryConfig{Attempts: 3, Delay: time.Millisecond}))
	require.NoError(t, err)

	require.NoError(t, hook.Transform(t.Context(), "feature.a"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhook_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(server.Close)

	hook, err := effects.NewWebhook(server.URL, effects.WithRetry(effects.RetryConfig{Attempts: 3}))
	require.NoError(t, err)

	err = hook.ReduceTraffic(t.Context(), "feature.a", "global", 50, 0)
	require.ErrorContains(t, err, "unexpected status 409")
	assert.Equal(t, int32(1), calls.Load())
}
