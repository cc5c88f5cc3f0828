// Package events implements the observer registry backing every emitter
// surface in this core (Connection "data"/"closing"/"closed", Server
// "connection"/"disconnection", socketOwner "created"/"opened"/"disposed").
// Handlers fire synchronously, in
// registration order, on whatever goroutine calls Emit. Callers that need
// async delivery wrap their own handler in a goroutine.
//
// The single-mutex-for-everything shape and the decision to recover and log
// a panicking handler rather than letting it take down the caller follow
// the "fail-fast for invariants, never for user callbacks" split described
// for event-loop registries: a bad handler is the caller's bug, not a
// reason to corrupt the registry or crash the Server Loop.
package events

import (
	"sync"

	"github.com/srtgo/srtgo/internal/logging"
)

// Handler receives whatever arguments the emitting component passes to
// Emit for a given event name. Emit does not hold the Registry's lock while
// handlers run, so a Handler may call On, Unregister or Dispose on the same
// Registry; a registration made during Emit is not invoked by that Emit.
type Handler func(args ...any)

// Unregister removes the handler it was returned for. Calling it more than
// once is a no-op.
type Unregister func()

// Registry is a synchronous, name-keyed observer list.
type Registry struct {
	mu       sync.Mutex
	handlers map[string][]registration
	nextID   uint64
	disposed bool
	logger   *logging.Logger
}

type registration struct {
	id uint64
	fn Handler
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		handlers: make(map[string][]registration),
		logger:   logger,
	}
}

// On registers fn to be invoked on every future Emit(name, ...). It returns
// an Unregister that removes exactly this registration. On is a no-op
// returning a no-op Unregister if the Registry has been disposed.
func (r *Registry) On(name string, fn Handler) Unregister {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return func() {}
	}

	r.nextID++
	id := r.nextID
	r.handlers[name] = append(r.handlers[name], registration{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		regs := r.handlers[name]
		for i, reg := range regs {
			if reg.id == id {
				r.handlers[name] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes every handler registered for name, in registration order, on
// the calling goroutine. A handler that panics is recovered and logged;
// remaining handlers still run. Emit on a disposed Registry is a no-op.
func (r *Registry) Emit(name string, args ...any) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	// Copy under lock so a handler calling On/Off during Emit can't race
	// the slice we're about to range over.
	regs := make([]registration, len(r.handlers[name]))
	copy(regs, r.handlers[name])
	r.mu.Unlock()

	for _, reg := range regs {
		r.invoke(name, reg.fn, args)
	}
}

func (r *Registry) invoke(name string, fn Handler, args []any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked", "event", name, "panic", rec)
		}
	}()
	fn(args...)
}

// Dispose clears every registration and marks the Registry so further On
// calls are no-ops and further Emit calls do nothing. It is idempotent.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]registration)
	r.disposed = true
}

// ListenerCount reports how many handlers are registered for name. Mainly
// useful in tests.
func (r *Registry) ListenerCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[name])
}
