package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	require.Equal(t, 2, bus.Subscribers())

	ev := Event{Resource: ResourceLayers, Action: ActionCreated, ID: "roads-1"}
	bus.Publish(ev)
	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)

	bus.Unsubscribe(a)
	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, bus.Subscribers())
}

func TestEventBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	for i := 0; i < 40; i++ {
		bus.Publish(Event{Resource: ResourceMeasurements, Action: ActionUpdated})
	}
	assert.Len(t, ch, cap(ch))
}
