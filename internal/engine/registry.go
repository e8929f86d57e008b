package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedProvider is returned when no engine is registered under a name.
var ErrUnsupportedProvider = errors.New("unsupported response engine")

// Registry holds named response engines. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]contracts.ResponseEngine
}

// NewRegistry creates a registry with the built-in local engine registered.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]contracts.ResponseEngine)}
	r.Register(LocalEngine{})
	return r
}

// Register adds an engine under its own name. Overwrites if exists.
func (r *Registry) Register(e contracts.ResponseEngine) {
	name := strings.ToLower(e.Name())
	r.mu.Lock()
	r.engines[name] = e
	r.mu.Unlock()
	log.Debug().Str("engine", name).Msg("Response engine registered")
}

// Get returns the engine registered under name (case-insensitive).
func (r *Registry) Get(name string) (contracts.ResponseEngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return e, nil
}

// List returns all registered engine names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
