package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/config"
	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/providers/cleanup"
	"github.com/dukex/cleanup/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *runtime {
	t.Helper()

	t.Setenv("CLEANUP_DATABASE_URL", "file://"+t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	rt, err := newRuntime(t.Context(), cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(context.Background()) })

	return rt
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func TestAPI_Routes(t *testing.T) {
	app := NewAPI(newTestRuntime(t)).App()

	status, raw := call(t, app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cleanup API", string(raw))

	status, _ = call(t, app, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw = call(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "healthy")

	for _, path := range []string{"/cleanups/", "/code-updates/", "/projects/"} {
		status, _ = call(t, app, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
	}
}

func TestAPI_ExternalEventsFromBus(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.listen(t.Context()))

	app := NewAPI(rt).App()

	status, raw := call(t, app, http.MethodPost, "/cleanups/", models.CleanupRequest{
		ConfigurationName: "feature.legacy-banner",
		WorkflowType:      models.WorkflowTypeCodeReview,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var created web.CreatedResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	status, _ = call(t, app, http.MethodPost, "/cleanups/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/cleanups/"+created.ID+"/proceed", nil)
	require.Equal(t, http.StatusOK, status)

	err := rt.bus.Publish(t.Context(), created.ID, &events.ExternalEventReceived{
		BaseEvent: events.NewBaseEvent(events.ExternalEventReceivedEvent, created.ID),
		Family:    models.ContextKindCleanup,
		EventType: cleanup.EventPRCreated,
		Data:      map[string]any{"url": "https://git.example.com/pr/7"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		response, err := rt.cleanups.GetWorkflow(t.Context(), created.ID)

		return err == nil && response.State == models.StateAwaitingReview
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCommand_Summary(t *testing.T) {
	t.Setenv("CLEANUP_DATABASE_URL", "file://"+t.TempDir())

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out

	require.NoError(t, command.Run(t.Context(), []string{"cleanup", "summary"}))

	var summary map[string]models.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Contains(t, summary, "cleanups")
	assert.Contains(t, summary, "code_updates")
	assert.Zero(t, summary["cleanups"].Total)
}
