// Package directory maps symbolic broker resource names to their resolved
// values. The original design looked names up through a per-thread naming
// context; here every name is registered up front in a concurrency-safe
// registry that is injected into each role, so no thread-local state exists.
package directory

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNameNotFound is returned when a symbolic name has no registered value
var ErrNameNotFound = errors.New("directory: name not found")

// Well-known symbolic names used by the demo
const (
	ConnectionFactoryName = "ConnectionFactory"
	QueueName             = "MyQueue"
)

// Registry resolves symbolic names to broker resources. Safe for concurrent
// use by any number of producers and consumers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]string),
	}
}

// Register binds a symbolic name to a resolved value, replacing any
// previous binding
func (r *Registry) Register(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = value
}

// Lookup resolves a symbolic name. A missing name is fatal to the caller.
func (r *Registry) Lookup(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNameNotFound, name)
	}
	return value, nil
}

// Names returns the registered symbolic names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
