package events_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		event    interface{ GetType() events.EventType }
		expected events.EventType
	}{
		{"created", events.WorkflowCreated{}, events.WorkflowCreatedEvent},
		{"transitioned", events.WorkflowTransitioned{}, events.WorkflowTransitionedEvent},
		{"completed", events.WorkflowCompleted{}, events.WorkflowCompletedEvent},
		{"failed", events.WorkflowFailed{}, events.WorkflowFailedEvent},
		{"deleted", events.WorkflowDeleted{}, events.WorkflowDeletedEvent},
		{"external", events.ExternalEventReceived{}, events.ExternalEventReceivedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestExternalEventReceived_JSON(t *testing.T) {
	t.Parallel()

	event := events.ExternalEventReceived{
		BaseEvent: events.NewBaseEvent(events.ExternalEventReceivedEvent, "wf-1"),
		Family:    models.ContextKindCleanup,
		EventType: "pr-created",
		Data:      map[string]any{"url": "https://git.example.com/pr/1"},
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.ExternalEventReceived
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.NotEmpty(t, decoded.ID)
	assert.Equal(t, "wf-1", decoded.WorkflowID)
	assert.Equal(t, models.ContextKindCleanup, decoded.Family)
	assert.Equal(t, "https://git.example.com/pr/1", decoded.Data["url"])
}
