package module

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
)

// Root is a directory tree searched for modules.
type Root struct {
	// Name identifies the root in error messages, e.g. "builtin" or a path.
	Name string
	FS   fs.FS
}

// Registry holds the modules discovered for one run and caches their
// instances. It is not global: each run owns its registry.
type Registry struct {
	logger   *slog.Logger
	table    *Table
	lookPath LookPathFunc

	mu      sync.RWMutex
	handles map[string]*Handle
	options map[string]Options
	order   []string // materialization order, for Cleanup
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry and passed to modules.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithTable sets the implementation table.
func WithTable(t *Table) Option {
	return func(r *Registry) {
		r.table = t
	}
}

// WithLookPath replaces exec.LookPath for binary dependency checks.
func WithLookPath(f LookPathFunc) Option {
	return func(r *Registry) {
		r.lookPath = f
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:  slog.Default(),
		table:   NewTable(),
		handles: make(map[string]*Handle),
		options: make(map[string]Options),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger replaces the logger handed to modules. It must be called before
// the first Materialize.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
}

// Discover walks every root and registers the modules found. A directory is a
// module iff it contains a manifest. Two modules with the same name are a
// fatal error naming both locations.
func (r *Registry) Discover(roots ...Root) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, root := range roots {
		if root.FS == nil {
			continue
		}
		entries, err := fs.ReadDir(root.FS, ".")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("module path does not exist, skipping", "path", root.Name)
				continue
			}
			return fmt.Errorf("failed to read module root %s: %w", root.Name, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			m, err := readManifest(root.FS, e.Name())
			if err != nil {
				return fmt.Errorf("%s: %w", root.Name, err)
			}
			if m == nil {
				continue
			}
			m.location = root.Name + ":" + e.Name()
			if prev, dup := r.handles[m.module]; dup {
				return fmt.Errorf("%w: %q found in %s and %s", ErrDuplicateModule, m.module, prev.manifest.location, m.location)
			}
			r.handles[m.module] = &Handle{manifest: m, registry: r}
			r.logger.Debug("module discovered", "module", m.module, "location", m.location)
		}
	}
	return nil
}

// Configure installs the resolved option values, keyed by module name.
// It must be called before the first Materialize.
func (r *Registry) Configure(tree map[string]Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options = make(map[string]Options, len(tree))
	for k, v := range tree {
		r.options[k] = v.Clone()
	}
}

// Names returns every module name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for k := range r.handles {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Get returns the handle of a module.
func (r *Registry) Get(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Manifests returns every manifest sorted by module name.
func (r *Registry) Manifests() []*Manifest {
	names := r.Names()
	out := make([]*Manifest, 0, len(names))
	for _, n := range names {
		h, _ := r.Get(n)
		out = append(out, h.manifest)
	}
	return out
}

// ByCapability returns the names of modules advertising c, sorted.
func (r *Registry) ByCapability(c Capability) []string {
	var out []string
	for _, m := range r.Manifests() {
		if m.Has(c) {
			out = append(out, m.module)
		}
	}
	return out
}

// Materialize returns the instance of a module, constructing it on first use.
func (r *Registry) Materialize(ctx context.Context, name string) (any, error) {
	h, ok := r.Get(name)
	if !ok {
		return nil, &SetupError{Module: name, Err: ErrUnknownModule}
	}
	return h.Materialize(ctx)
}

// Cleanup calls the Cleanup hook of every materialized instance in reverse
// materialization order. Errors are logged and joined.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	order := slices.Clone(r.order)
	r.order = nil
	r.mu.Unlock()

	var errs []error
	for _, name := range slices.Backward(order) {
		h, _ := r.Get(name)
		inst, ok := h.Instance()
		if !ok {
			continue
		}
		c, ok := inst.(Cleaner)
		if !ok {
			continue
		}
		if err := c.Cleanup(); err != nil {
			r.logger.Warn("module cleanup failed", "module", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) optionsFor(name string) Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.options[name]
}

func (r *Registry) materialized(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}
