// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every cleanup event.
const Topic = "cleanup.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Outbound lifecycle events.
	WorkflowCreatedEvent      EventType = "workflow.created"
	WorkflowTransitionedEvent EventType = "workflow.transitioned"
	WorkflowCompletedEvent    EventType = "workflow.completed"
	WorkflowFailedEvent       EventType = "workflow.failed"
	WorkflowDeletedEvent      EventType = "workflow.deleted"

	// Inbound events routed to a host.
	ExternalEventReceivedEvent EventType = "workflow.external_event"
)

type BaseEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	WorkflowID string            `json:"workflow_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewBaseEvent creates a base event with a fresh id and timestamp.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowCreated struct {
	BaseEvent

	WorkflowType string       `json:"workflow_type"`
	DisplayName  string       `json:"display_name"`
	State        models.State `json:"state"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

// WorkflowTransitioned is published for every history event recorded after creation.
type WorkflowTransitioned struct {
	BaseEvent

	WorkflowType string         `json:"workflow_type"`
	HistoryEvent string         `json:"history_event"`
	FromState    models.State   `json:"from_state"`
	ToState      models.State   `json:"to_state"`
	Data         map[string]any `json:"data,omitempty"`
}

func (w WorkflowTransitioned) GetType() EventType {
	return WorkflowTransitionedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	WorkflowType string       `json:"workflow_type"`
	State        models.State `json:"state"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	WorkflowType string `json:"workflow_type"`
	Error        string `json:"error"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// ExternalEventReceived asks the host owning Family to apply an external event
// (for example a pull request webhook) to WorkflowID.
type ExternalEventReceived struct {
	BaseEvent

	Family    models.ContextKind `json:"family"`
	EventType string             `json:"event_type"`
	Data      map[string]any     `json:"data,omitempty"`
}

func (e ExternalEventReceived) GetType() EventType {
	return ExternalEventReceivedEvent
}
