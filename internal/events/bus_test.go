package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDispatch(t *testing.T) {
	bus := New(nil)

	var repoEvents, allEvents int
	bus.Subscribe(TypeRepository, func(eventType string, payload map[string]any) {
		repoEvents++
		assert.Equal(t, "install", payload["action"])
	})
	bus.Subscribe("", func(eventType string, payload map[string]any) {
		allEvents++
	})

	bus.Dispatch(TypeRepository, map[string]any{"action": "install"})
	bus.Dispatch(TypeConfig, nil)

	assert.Equal(t, 1, repoEvents)
	assert.Equal(t, 2, allEvents)
}

func TestBusNoSubscribers(t *testing.T) {
	bus := New(nil)
	assert.NotPanics(t, func() {
		bus.Dispatch(TypeStatus, map[string]any{"startup": true})
	})
}
