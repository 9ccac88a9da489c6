package mutation

import (
	"slices"
	"sync"
)

// EventName identifies a mutation lifecycle event.
type EventName string

// Lifecycle events emitted by Mutation.Run, in the order they can occur.
const (
	EventStarted   EventName = "mutation:started"
	EventSucceeded EventName = "mutation:succeeded"
	EventFailed    EventName = "mutation:failed"
	EventSettled   EventName = "mutation:settled"
)

// Event describes one lifecycle step of a mutation run.
type Event struct {
	Name      EventName
	Operation string
	Variables any
	Result    any
	Err       error
}

// EventRegistry manages lifecycle event handlers for mutation runs.
// Handlers are stored per event and execute in registration order.
// The registry is safe for concurrent registration and triggering.
type EventRegistry struct {
	handlers map[EventName][]func(Event)
	mu       sync.RWMutex
}

// NewEventRegistry creates an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		handlers: make(map[EventName][]func(Event)),
	}
}

// On registers a handler for a lifecycle event. Multiple handlers can be
// registered for the same event.
//
// Handlers should be quick, non-blocking operations. If a handler panics,
// the panic propagates and subsequent handlers do not execute.
func (r *EventRegistry) On(name EventName, handler func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[name] = append(r.handlers[name], handler)
}

// Trigger runs every handler registered for ev.Name. A nil registry is a
// no-op.
func (r *EventRegistry) Trigger(ev Event) {
	if r == nil {
		return
	}

	r.mu.RLock()
	handlers := slices.Clone(r.handlers[ev.Name])
	r.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
