package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Klass values describe the role of factory elements.
const (
	KlassSource = "Source"
	KlassFilter = "Filter"
	KlassSink   = "Sink"
)

// Factory makes elements of a single type.
type Factory struct {
	Name        string
	Klass       string
	Description string
	New         func() (Element, error)
}

// Plugin registers factories in the registry.
type Plugin func(*Registry) error

// Registry maps factory names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory to the registry. Names must be unique.
func (r *Registry) Register(fs ...Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fs {
		if f.Name == "" || f.New == nil {
			return fmt.Errorf("invalid factory %q", f.Name)
		}
		if _, ok := r.factories[f.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateFactory, f.Name)
		}
		r.factories[f.Name] = f
	}
	return nil
}

// Lookup returns factory by name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return Factory{}, &ElementNotFoundError{Factory: name}
	}
	return f, nil
}

// Factories returns all registered factories sorted by name.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fs := make([]Factory, 0, len(r.factories))
	for _, f := range r.factories {
		fs = append(fs, f)
	}
	sort.Slice(fs, func(i, j int) bool {
		return fs[i].Name < fs[j].Name
	})
	return fs
}
