// Package event provides a lightweight in-process notification system.
//
// Events carry only identifiers, never full records. Clients that receive a
// notification call the HTTP API to fetch current data, which keeps the event
// stream cheap and avoids serving stale payloads.
package event

import (
	"sync"
)

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "agent.turnCompleted")
	EventName() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

// Emitter manages event subscriptions and dispatching. Listeners are keyed
// by a unique id so unsubscribing removes exactly the listener that was
// registered.
type Emitter struct {
	mu           sync.RWMutex
	nextID       uint64
	listeners    map[string]map[uint64]Listener // eventName -> id -> listener
	allListeners map[uint64]Listener            // listeners for all events
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners:    make(map[string]map[uint64]Listener),
		allListeners: make(map[uint64]Listener),
	}
}

// On subscribes to a specific event type.
// Returns an unsubscribe function; calling it more than once is harmless.
func (e *Emitter) On(eventName string, fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	if e.listeners[eventName] == nil {
		e.listeners[eventName] = make(map[uint64]Listener)
	}
	e.listeners[eventName][id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[eventName], id)
	}
}

// OnAny subscribes to all events.
// Returns an unsubscribe function; calling it more than once is harmless.
func (e *Emitter) OnAny(fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.allListeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.allListeners, id)
	}
}

// Emit dispatches an event to all matching listeners. Listeners are copied
// before dispatch so a listener may unsubscribe without deadlocking.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	dispatch := make([]Listener, 0, len(e.listeners[ev.EventName()])+len(e.allListeners))
	for _, fn := range e.listeners[ev.EventName()] {
		dispatch = append(dispatch, fn)
	}
	for _, fn := range e.allListeners {
		dispatch = append(dispatch, fn)
	}
	e.mu.RUnlock()

	for _, fn := range dispatch {
		fn(ev)
	}
}

// ---- Global Emitter ----

var globalEmitter *Emitter
var globalOnce sync.Once

// Global returns the global event emitter.
func Global() *Emitter {
	globalOnce.Do(func() {
		globalEmitter = NewEmitter()
	})
	return globalEmitter
}

// Emit is a shortcut for Global().Emit(ev).
func Emit(ev Event) {
	Global().Emit(ev)
}

// On is a shortcut for Global().On(eventName, fn).
func On(eventName string, fn Listener) func() {
	return Global().On(eventName, fn)
}
