package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToTopicSubscribers(t *testing.T) {
	hub := NewHub()

	ch, cleanup := hub.Subscribe("op-1")
	defer cleanup()
	other, cleanupOther := hub.Subscribe("op-2")
	defer cleanupOther()

	hub.Publish("op-1", Event{Event: "progress", Data: 1})

	select {
	case ev := <-ch:
		assert.Equal(t, "op-1", ev.Topic)
		assert.Equal(t, "progress", ev.Event)
	default:
		t.Fatal("expected event on op-1")
	}

	select {
	case <-other:
		t.Fatal("op-2 subscriber must not receive op-1 events")
	default:
	}
}

func TestHub_CleanupRemovesSubscriber(t *testing.T) {
	hub := NewHub()

	ch, cleanup := hub.Subscribe("op-1")
	require.Equal(t, 1, hub.SubscriberCount("op-1"))

	cleanup()
	cleanup()

	assert.Equal(t, 0, hub.SubscriberCount("op-1"))
	_, open := <-ch
	assert.False(t, open)
}

func TestHub_PublishDoesNotBlockWhenFull(t *testing.T) {
	hub := NewHub()
	_, cleanup := hub.Subscribe("op-1")
	defer cleanup()

	for i := 0; i < 100; i++ {
		hub.Publish("op-1", Event{Event: "progress", Data: i})
	}
}
