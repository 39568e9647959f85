package strategy

import (
	"sort"
	"sync"

	"github.com/newthinker/tradesim/internal/core"
)

// Factory creates a strategy with its default parameters.
type Factory func() Strategy

// Registry maps strategy names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New creates the strategy registered as name and initializes it with cfg.
func (r *Registry) New(name string, cfg Config) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrStrategyUnknown, "%q", name)
	}
	s := f()
	if err := s.Init(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	return s, nil
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
