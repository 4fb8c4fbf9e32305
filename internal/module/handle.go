package module

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var errCycle = errors.New("dependency cycle")

type loadingKey struct{}

// loadingChain returns the module names being materialized by the caller.
func loadingChain(ctx context.Context) []string {
	chain, _ := ctx.Value(loadingKey{}).([]string)
	return chain
}

// Handle is the lazy reference to one discovered module.
type Handle struct {
	manifest *Manifest
	registry *Registry

	mu       sync.Mutex
	done     chan struct{}
	instance any
	err      error
}

// Manifest returns the parsed descriptor.
func (h *Handle) Manifest() *Manifest { return h.manifest }

// Instance returns the cached instance without materializing.
func (h *Handle) Instance() (any, bool) {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done == nil {
		return nil, false
	}
	select {
	case <-done:
		return h.instance, h.err == nil
	default:
		return nil, false
	}
}

// Materialize verifies dependencies, builds options, constructs the instance
// and runs its Setup hook. Concurrent callers wait for the first one and share
// its result; the outcome is cached for the lifetime of the registry.
func (h *Handle) Materialize(ctx context.Context) (any, error) {
	name := h.manifest.module
	chain := loadingChain(ctx)
	if slices.Contains(chain, name) {
		return nil, &SetupError{
			Module: name,
			Err:    fmt.Errorf("%w: %v", errCycle, append(slices.Clone(chain), name)),
		}
	}

	h.mu.Lock()
	if h.done != nil {
		done := h.done
		h.mu.Unlock()
		select {
		case <-done:
			return h.instance, h.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.done = make(chan struct{})
	h.mu.Unlock()

	inst, err := h.load(context.WithValue(ctx, loadingKey{}, append(slices.Clone(chain), name)))

	h.mu.Lock()
	h.instance, h.err = inst, err
	close(h.done)
	h.mu.Unlock()

	if err == nil {
		h.registry.materialized(name)
	}
	return inst, err
}

func (h *Handle) load(ctx context.Context) (any, error) {
	m := h.manifest
	reg := h.registry
	var missing []string

	factory, ok := reg.table.Lookup(m.EntryPoint)
	if !ok {
		missing = append(missing, fmt.Sprintf("implementation %q", m.EntryPoint))
	}

	for _, dep := range m.Dependencies.Modules {
		if _, ok := reg.Get(dep); !ok {
			missing = append(missing, fmt.Sprintf("module %q", dep))
			continue
		}
		if _, err := reg.Materialize(ctx, dep); err != nil {
			if errors.Is(err, errCycle) {
				return nil, err
			}
			missing = append(missing, fmt.Sprintf("module %q (%v)", dep, err))
		}
	}

	for _, st := range CheckBinaries(m.Dependencies.Bin, reg.lookPath) {
		if !st.Available {
			missing = append(missing, st.Detail)
		}
	}

	opts := h.buildOptions()
	for _, optName := range m.OptionNames() {
		if m.Configs[optName].Required && !present(opts[optName]) {
			missing = append(missing, fmt.Sprintf("required option %s.%s", m.module, optName))
		}
	}

	if len(missing) > 0 {
		return nil, &SetupError{Module: m.module, Missing: missing}
	}

	env := &Env{
		Name:        m.module,
		DisplayName: m.Name,
		Options:     opts,
		Logger:      reg.logger.With("module", m.module),
		registry:    reg,
	}
	inst, err := factory(env)
	if err != nil {
		return nil, &SetupError{Module: m.module, Err: err}
	}

	for _, c := range m.Type {
		if !implements(inst, c) {
			return nil, &SetupError{Module: m.module, Err: fmt.Errorf("%T does not implement %s", inst, c)}
		}
	}

	if s, ok := inst.(Setuper); ok {
		if err := s.Setup(ctx); err != nil {
			return nil, &SetupError{Module: m.module, Err: fmt.Errorf("setup failed: %w", err)}
		}
	}

	reg.logger.Debug("module materialized", "module", m.module, "version", m.Version)
	return inst, nil
}

// buildOptions layers the resolved values over the schema defaults.
func (h *Handle) buildOptions() Options {
	opts := make(Options, len(h.manifest.Configs))
	for k, spec := range h.manifest.Configs {
		if spec.Default != nil {
			opts[k] = spec.Default
		}
	}
	for k, v := range h.registry.optionsFor(h.manifest.module) {
		opts[k] = v
	}
	return opts
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	case []any:
		return len(x) > 0
	}
	return true
}
