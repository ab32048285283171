// Package dispatch routes decoded commands to their handlers and
// enforces the per-command execution policy: synchronous commands run
// on the dispatch path, job-class commands are handed to the job
// supervisor.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcafs/arca/internal/command"
)

// Handler executes one command key against core state.
type Handler interface {
	Handle(ctx context.Context, cmd command.Command) (any, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, cmd command.Command) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd command.Command) (any, error) {
	return f(ctx, cmd)
}

// Registry maps each command key to exactly one handler. Registration
// happens at startup; Validate must pass before the dispatcher serves.
type Registry struct {
	mu       sync.RWMutex
	handlers map[command.Key]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[command.Key]Handler)}
}

// Register binds a handler to a key. Registering an unknown key or
// registering a key twice is a startup error, never a runtime one.
func (r *Registry) Register(key command.Key, h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler for %s", key)
	}
	if _, ok := command.SpecFor(key); !ok {
		return fmt.Errorf("key %s is not in the command schema", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("handler already registered for %s", key)
	}
	r.handlers[key] = h
	return nil
}

// Get returns the handler for a key.
func (r *Registry) Get(key command.Key) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Validate checks registration is exhaustive over the command schema.
// An unregistered key is a fatal startup error, not a runtime surprise.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range command.Keys() {
		if _, ok := r.handlers[key]; !ok {
			return fmt.Errorf("no handler registered for %s", key)
		}
	}
	return nil
}
