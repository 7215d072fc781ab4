package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/services"
)

type eventHandler interface {
	HandleExternalEvent(ctx context.Context, id, eventType string, data map[string]any) (*models.WorkflowResponse, error)
}

// eventRouter applies external events arriving on the bus to the host of
// their family. Events that can never apply are logged and dropped; other
// failures are returned so the message is redelivered.
type eventRouter struct {
	hosts  map[models.ContextKind]eventHandler
	logger *slog.Logger
}

func newEventRouter(logger *slog.Logger, cleanups, updates eventHandler) *eventRouter {
	return &eventRouter{
		hosts: map[models.ContextKind]eventHandler{
			models.ContextKindCleanup:    cleanups,
			models.ContextKindCodeUpdate: updates,
		},
		logger: logger,
	}
}

func (r *eventRouter) handle(ctx context.Context, event any) error {
	received, ok := event.(*events.ExternalEventReceived)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	host, ok := r.hosts[received.Family]
	if !ok {
		r.logger.WarnContext(ctx, "Dropping event for unknown family", "family", received.Family, "workflow_id", received.WorkflowID)

		return nil
	}

	_, err := host.HandleExternalEvent(ctx, received.WorkflowID, received.EventType, received.Data)

	switch {
	case err == nil:
		return nil
	case services.IsNotFound(err), services.IsInvalidState(err), services.IsUnsupported(err), services.IsValidationError(err):
		r.logger.WarnContext(ctx, "Dropping external event",
			"workflow_id", received.WorkflowID,
			"event_type", received.EventType,
			"error", err)

		return nil
	default:
		return err
	}
}
