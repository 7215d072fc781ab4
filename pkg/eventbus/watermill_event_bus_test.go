package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/cleanup/pkg/channels/gochannel"
	"github.com/dukex/cleanup/pkg/eventbus"
	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan *events.ExternalEventReceived, 1)

	require.NoError(t, bus.Handle(events.ExternalEventReceivedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.ExternalEventReceived)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	err := bus.Publish(t.Context(), "wf-1", events.ExternalEventReceived{
		BaseEvent: events.NewBaseEvent(events.ExternalEventReceivedEvent, "wf-1"),
		Family:    models.ContextKindCleanup,
		EventType: "pr-approved",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, "pr-approved", event.EventType)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledEventsAreAcked(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	deleted := make(chan string, 1)

	require.NoError(t, bus.Handle(events.WorkflowDeletedEvent, func(_ context.Context, event any) error {
		deleted <- event.(*events.WorkflowDeleted).WorkflowID

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, "wf-1"),
	}))
	require.NoError(t, bus.Publish(t.Context(), "wf-2", events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, "wf-2"),
	}))

	select {
	case id := <-deleted:
		assert.Equal(t, "wf-2", id)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
