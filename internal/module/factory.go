package module

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Factory constructs a module instance from its environment. It is called at
// most once per Registry.
type Factory func(env *Env) (any, error)

// Env is what a factory receives.
type Env struct {
	// Name is the registry key of the module.
	Name string
	// DisplayName is the manifest name.
	DisplayName string
	// Options are the resolved option values, defaults included.
	Options Options
	// Logger is scoped to the module.
	Logger *slog.Logger

	registry *Registry
}

// Sibling materializes another module of the same registry. Modules that
// call it should list the sibling under dependencies.modules so it is
// verified up front.
func (e *Env) Sibling(ctx context.Context, name string) (any, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return e.registry.Materialize(ctx, name)
}

// Table maps manifest entry points to factories. Registering a factory does
// not construct anything.
type Table struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewTable creates an empty implementation table.
func NewTable() *Table {
	return &Table{factories: make(map[string]Factory)}
}

// Register adds a factory under an entry point, replacing any previous one.
func (t *Table) Register(entryPoint string, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[entryPoint] = f
}

// Lookup returns the factory for an entry point.
func (t *Table) Lookup(entryPoint string) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[entryPoint]
	return f, ok
}

// EntryPoints returns the registered entry points in sorted order.
func (t *Table) EntryPoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.factories))
	for k := range t.factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
