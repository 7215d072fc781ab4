package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	calls []string
	err   error
}

func (s *stubHandler) HandleExternalEvent(_ context.Context, id, eventType string, _ map[string]any) (*models.WorkflowResponse, error) {
	s.calls = append(s.calls, id+":"+eventType)

	return &models.WorkflowResponse{}, s.err
}

func received(family models.ContextKind, id, eventType string) *events.ExternalEventReceived {
	return &events.ExternalEventReceived{
		BaseEvent: events.BaseEvent{WorkflowID: id},
		Family:    family,
		EventType: eventType,
	}
}

func TestEventRouter_RoutesByFamily(t *testing.T) {
	t.Parallel()

	cleanups, updates := &stubHandler{}, &stubHandler{}
	router := newEventRouter(slog.Default(), cleanups, updates)

	require.NoError(t, router.handle(context.Background(), received(models.ContextKindCleanup, "wf-1", "pr-created")))
	require.NoError(t, router.handle(context.Background(), received(models.ContextKindCodeUpdate, "wf-2", "pr-merged")))

	assert.Equal(t, []string{"wf-1:pr-created"}, cleanups.calls)
	assert.Equal(t, []string{"wf-2:pr-merged"}, updates.calls)
}

func TestEventRouter_DropsEventsThatCannotApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"not found", services.ErrWorkflowNotFound},
		{"invalid state", services.ErrInvalidState},
		{"unsupported event", services.ErrUnsupportedEvent},
		{"validation", services.NewValidationError("HandleExternalEvent", "bad payload", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newEventRouter(slog.Default(), &stubHandler{err: tt.err}, &stubHandler{})

			assert.NoError(t, router.handle(context.Background(), received(models.ContextKindCleanup, "wf-1", "x")))
		})
	}
}

func TestEventRouter_ReturnsTransientErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	router := newEventRouter(slog.Default(), &stubHandler{err: boom}, &stubHandler{})

	err := router.handle(context.Background(), received(models.ContextKindCleanup, "wf-1", "x"))
	assert.ErrorIs(t, err, boom)
}

func TestEventRouter_UnknownFamilyAndPayload(t *testing.T) {
	t.Parallel()

	cleanups := &stubHandler{}
	router := newEventRouter(slog.Default(), cleanups, &stubHandler{})

	assert.NoError(t, router.handle(context.Background(), received("billing", "wf-1", "x")))
	assert.Empty(t, cleanups.calls)

	assert.Error(t, router.handle(context.Background(), &events.WorkflowCreated{}))
}
