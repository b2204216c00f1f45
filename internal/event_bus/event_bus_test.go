package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("handlers run in subscription order", func(t *testing.T) {
		bus := NewEventBus()
		var calls []string
		for _, name := range []string{"cache", "view", "badge"} {
			bus.Subscribe("timesheet.changed", func(e Event) error {
				calls = append(calls, name)
				return nil
			})
		}
		bus.Subscribe("user.changed", func(e Event) error {
			calls = append(calls, "other")
			return nil
		})

		err := bus.Publish(NewEvent(context.Background(), "timesheet.changed", TimesheetChanged{TimesheetId: 1}))

		require.NoError(t, err)
		assert.Equal(t, []string{"cache", "view", "badge"}, calls)
	})

	t.Run("failures and panics do not stop other handlers", func(t *testing.T) {
		bus := NewEventBus()
		failure := errors.New("boom")
		delivered := 0
		bus.Subscribe("session.invalidated", func(e Event) error { return failure })
		bus.Subscribe("session.invalidated", func(e Event) error { panic("bad handler") })
		bus.Subscribe("session.invalidated", func(e Event) error {
			delivered++
			return nil
		})

		err := bus.Publish(NewEvent(context.Background(), "session.invalidated", SessionInvalidated{Reason: "logout"}))

		assert.ErrorIs(t, err, failure)
		assert.ErrorContains(t, err, "2 handler(s) failed")
		assert.ErrorContains(t, err, "panicked")
		assert.Equal(t, 1, delivered)
	})

	t.Run("cancelled context", func(t *testing.T) {
		bus := NewEventBus()
		called := false
		bus.Subscribe("timesheet.changed", func(e Event) error {
			called = true
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := bus.Publish(NewEvent(ctx, "timesheet.changed", TimesheetChanged{}))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	var calls []int
	unsubFirst := bus.Subscribe("project.changed", func(e Event) error {
		calls = append(calls, 1)
		return nil
	})
	bus.Subscribe("project.changed", func(e Event) error {
		calls = append(calls, 2)
		return nil
	})

	unsubFirst()
	unsubFirst()
	require.NoError(t, bus.Publish(NewEvent(context.Background(), "project.changed", ProjectChanged{})))

	assert.Equal(t, []int{2}, calls)
}

func TestSubscribeTyped(t *testing.T) {
	bus := NewEventBus()
	var reviewed []TimesheetReviewed
	SubscribeTyped(bus, "timesheet.reviewed", func(e EventT[TimesheetReviewed]) error {
		assert.Equal(t, EventType("timesheet.reviewed"), e.Type)
		assert.Equal(t, "req-1", e.Context().Value(ctxKey{}))
		reviewed = append(reviewed, e.Data)
		return nil
	})
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")

	require.NoError(t, bus.Publish(NewEvent(ctx, "timesheet.reviewed", TimesheetReviewed{TimesheetId: 7, Status: "APPROVED"})))
	require.NoError(t, bus.Publish(NewEvent(ctx, "timesheet.reviewed", "not a review")))
	require.NoError(t, bus.Publish(NewEvent(ctx, "timesheet.reviewed", nil)))

	assert.Equal(t, []TimesheetReviewed{{TimesheetId: 7, Status: "APPROVED"}}, reviewed)
}

type ctxKey struct{}

func TestEvent_Context(t *testing.T) {
	assert.NotNil(t, Event{}.Context())
	assert.NotNil(t, EventT[int]{}.Context())
}
