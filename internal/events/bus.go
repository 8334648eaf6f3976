// Package events provides a small in-process publish/subscribe bus used to
// signal repository and configuration changes.
package events

import (
	"log/slog"
	"sync"
)

// Event types dispatched by the agent.
const (
	TypeRepository = "hacs/repository"
	TypeConfig     = "hacs/config"
	TypeStatus     = "hacs/status"
)

// Handler receives dispatched events. Handlers run synchronously on the
// dispatching goroutine and must not block.
type Handler func(eventType string, payload map[string]any)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: map[string][]Handler{},
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type. An empty event type
// subscribes to everything.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Dispatch delivers the event to all matching subscribers.
func (b *Bus) Dispatch(eventType string, payload map[string]any) {
	b.mu.RLock()
	handlers := append(append([]Handler(nil), b.handlers[eventType]...), b.handlers[""]...)
	b.mu.RUnlock()

	b.logger.Debug("event", "type", eventType, "payload", payload)
	for _, h := range handlers {
		h(eventType, payload)
	}
}
