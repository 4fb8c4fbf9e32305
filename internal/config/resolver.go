package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/autoarchiver/internal/module"
)

// Resolver computes the effective configuration of a run from three layers,
// in ascending precedence: option defaults declared by manifests, the
// persisted document, and dotted-path overrides from the command line.
type Resolver struct {
	manifests []*module.Manifest
	doc       *Document
	overrides map[string]string
	steps     map[module.Capability][]string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOverrides sets the command line overrides, keyed by dotted path
// (e.g. "local_storage.save_to"). Values are raw strings.
func WithOverrides(overrides map[string]string) ResolverOption {
	return func(r *Resolver) {
		r.overrides = maps.Clone(overrides)
	}
}

// WithSteps replaces the document's step list for a capability.
func WithSteps(c module.Capability, names []string) ResolverOption {
	return func(r *Resolver) {
		r.steps[c] = slices.Clone(names)
	}
}

// NewResolver creates a resolver over the discovered manifests and the
// document. A nil document behaves like an empty one.
func NewResolver(manifests []*module.Manifest, doc *Document, opts ...ResolverOption) *Resolver {
	if doc == nil {
		doc, _ = ParseDocument(nil)
	}
	r := &Resolver{
		manifests: manifests,
		doc:       doc,
		overrides: map[string]string{},
		steps:     map[module.Capability][]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	// Modules holds the coerced options of every known module.
	Modules map[string]module.Options
	// Steps lists the modules of the run per capability.
	Steps Steps
	// Tree is the fully merged configuration tree.
	Tree map[string]any
	// Simple is true when steps were derived because the document had none.
	Simple bool
}

// Resolve merges the layers and coerces every declared option. The first
// value that cannot be coerced is returned as a *ValidationError.
func (r *Resolver) Resolve() (*Resolved, error) {
	docTree, err := r.doc.Map()
	if err != nil {
		return nil, setupError(err)
	}
	cliTree, err := r.cliTree()
	if err != nil {
		return nil, err
	}

	tree := MergeTrees(MergeTrees(r.defaultsTree(), docTree), cliTree)

	steps := stepsFromTree(tree)
	for c, names := range r.steps {
		steps.Set(c, names)
	}
	simple := false
	if steps.IsEmpty() {
		steps = simpleSteps(r.manifests)
		simple = true
	}

	modules := make(map[string]module.Options, len(r.manifests))
	for _, m := range r.manifests {
		section, _ := asMap(tree[m.Module()])
		opts := make(module.Options, len(section))
		for k, v := range section {
			spec, declared := m.Configs[k]
			if !declared {
				opts[k] = v
				continue
			}
			coerced, err := Coerce(spec, v)
			if err != nil {
				return nil, &ValidationError{Module: m.Module(), Option: k, Value: v, Err: err}
			}
			opts[k] = coerced
		}
		modules[m.Module()] = opts
	}

	return &Resolved{Modules: modules, Steps: steps, Tree: tree, Simple: simple}, nil
}

// defaultsTree is the lowest layer: every declared default.
func (r *Resolver) defaultsTree() map[string]any {
	tree := map[string]any{
		"logging": map[string]any{"level": DefaultLogLevel, "format": DefaultLogFormat},
		"workers": DefaultWorkers,
	}
	for _, m := range r.manifests {
		section := make(map[string]any)
		for name, spec := range m.Configs {
			if spec.Default != nil {
				section[name] = spec.Default
			}
		}
		tree[m.Module()] = section
	}
	return tree
}

// cliTree converts the overrides into a nested tree. Values of declared
// options are coerced so lists merge as lists; other values are read as YAML
// scalars, so "2" becomes an int and "true" a bool.
func (r *Resolver) cliTree() (map[string]any, error) {
	flat := make(map[string]any, len(r.overrides))
	for path, raw := range r.overrides {
		if _, err := splitPath(path); err != nil {
			return nil, setupError(err)
		}
		if spec, mod, opt, ok := r.lookup(path); ok {
			v, err := Coerce(spec, raw)
			if err != nil {
				return nil, &ValidationError{Module: mod, Option: opt, Value: raw, Err: err}
			}
			flat[path] = v
			continue
		}
		flat[path] = parseScalar(raw)
	}
	return Unflatten(flat), nil
}

// lookup finds the option schema addressed by a "module.option" path.
func (r *Resolver) lookup(path string) (module.OptionSpec, string, string, bool) {
	mod, opt, ok := strings.Cut(path, ".")
	if !ok || strings.Contains(opt, ".") {
		return module.OptionSpec{}, "", "", false
	}
	for _, m := range r.manifests {
		if m.Module() != mod {
			continue
		}
		spec, declared := m.Configs[opt]
		return spec, mod, opt, declared
	}
	return module.OptionSpec{}, "", "", false
}

func parseScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	if _, isMap := asMap(v); isMap {
		return raw
	}
	return v
}

// StoreInto writes the command line overrides and step replacements into doc.
// Options declared do_not_store are skipped.
func (r *Resolver) StoreInto(doc *Document) error {
	for _, path := range slices.Sorted(maps.Keys(r.overrides)) {
		raw := r.overrides[path]
		spec, _, _, declared := r.lookup(path)
		if declared && spec.DoNotStore {
			continue
		}
		var value any = parseScalar(raw)
		if declared {
			coerced, err := Coerce(spec, raw)
			if err != nil {
				return err
			}
			value = coerced
		}
		if err := doc.Set(path, value); err != nil {
			return err
		}
	}
	for _, c := range module.Capabilities {
		names, ok := r.steps[c]
		if !ok {
			continue
		}
		if err := doc.Set("steps."+StepKey(c), names); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo copies the global settings found in the merged tree into cfg.
func (res *Resolved) ApplyTo(cfg *Config) error {
	if v, ok := getPath(res.Tree, "logging.level"); ok && v != nil {
		cfg.LogLevel = strings.ToUpper(fmt.Sprint(v))
	}
	if v, ok := getPath(res.Tree, "logging.format"); ok && v != nil {
		cfg.LogFormat = strings.ToLower(fmt.Sprint(v))
	}
	if v, ok := getPath(res.Tree, "logging.file"); ok && v != nil {
		cfg.LogFile = fmt.Sprint(v)
	}
	if v, ok := res.Tree["workers"]; ok && v != nil {
		n, err := coerceInt(module.OptionSpec{}, v)
		if err != nil {
			return &ValidationError{Module: "orchestrator", Option: "workers", Value: v, Err: err}
		}
		cfg.Workers = n.(int)
	}
	if v, ok := res.Tree["allow_private_urls"]; ok && v != nil {
		b, err := coerceBool(module.OptionSpec{}, v)
		if err != nil {
			return &ValidationError{Module: "orchestrator", Option: "allow_private_urls", Value: v, Err: err}
		}
		cfg.AllowPrivateURLs = b.(bool)
	}
	for _, p := range stringList(res.Tree["module_paths"]) {
		if !slices.Contains(cfg.ModulePaths, p) {
			cfg.ModulePaths = append(cfg.ModulePaths, p)
		}
	}
	return nil
}

// ModulePaths returns the module_paths listed in the document, before any
// module is discovered.
func ModulePaths(doc *Document) []string {
	if doc == nil {
		return nil
	}
	v, _ := doc.Get("module_paths")
	return stringList(v)
}
