package core

import (
	"fmt"
	"sync"
)

// Registry hands out lazily built, shared agent runtimes by name. Each
// runtime is constructed at most once; construction failures are sticky.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once    sync.Once
	runtime AgentRuntime
	err     error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Acquire returns the runtime registered under name, building it with build
// on first use.
func (r *Registry) Acquire(name string, build func() (AgentRuntime, error)) (AgentRuntime, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &registryEntry{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.runtime, e.err = build()
	})
	if e.err != nil {
		return nil, fmt.Errorf("build agent %s: %w", name, e.err)
	}
	return e.runtime, nil
}

// Close shuts down every built runtime.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for name, e := range r.entries {
		if e.runtime == nil {
			continue
		}
		if err := e.runtime.Close(); err != nil && first == nil {
			first = fmt.Errorf("close agent %s: %w", name, err)
		}
	}
	return first
}
