package config

import (
	"slices"

	"github.com/nao1215/autoarchiver/internal/module"
)

// Steps lists, per capability, the modules a run uses in order.
type Steps struct {
	Feeders    []string `yaml:"feeders"`
	Extractors []string `yaml:"extractors"`
	Enrichers  []string `yaml:"enrichers"`
	Databases  []string `yaml:"databases"`
	Storages   []string `yaml:"storages"`
	Formatters []string `yaml:"formatters"`
}

// stepKeys maps capabilities to their key in the steps section.
var stepKeys = map[module.Capability]string{
	module.CapFeeder:    "feeders",
	module.CapExtractor: "extractors",
	module.CapEnricher:  "enrichers",
	module.CapDatabase:  "databases",
	module.CapStorage:   "storages",
	module.CapFormatter: "formatters",
}

// StepKey returns the steps section key for a capability, e.g. "feeders".
func StepKey(c module.Capability) string { return stepKeys[c] }

// For returns the modules configured for a capability.
func (s *Steps) For(c module.Capability) []string {
	switch c {
	case module.CapFeeder:
		return s.Feeders
	case module.CapExtractor:
		return s.Extractors
	case module.CapEnricher:
		return s.Enrichers
	case module.CapDatabase:
		return s.Databases
	case module.CapStorage:
		return s.Storages
	case module.CapFormatter:
		return s.Formatters
	}
	return nil
}

// Set replaces the modules configured for a capability.
func (s *Steps) Set(c module.Capability, names []string) {
	switch c {
	case module.CapFeeder:
		s.Feeders = names
	case module.CapExtractor:
		s.Extractors = names
	case module.CapEnricher:
		s.Enrichers = names
	case module.CapDatabase:
		s.Databases = names
	case module.CapStorage:
		s.Storages = names
	case module.CapFormatter:
		s.Formatters = names
	}
}

// IsEmpty reports whether no step lists any module.
func (s *Steps) IsEmpty() bool {
	for _, c := range module.Capabilities {
		if len(s.For(c)) > 0 {
			return false
		}
	}
	return true
}

// Modules returns every module named in the steps, deduplicated, in pipeline
// order.
func (s *Steps) Modules() []string {
	var out []string
	for _, c := range module.Capabilities {
		for _, n := range s.For(c) {
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// Validate enforces exactly one feeder and at most one formatter.
func (s *Steps) Validate() error {
	switch {
	case len(s.Feeders) == 0:
		return setupError(ErrNoFeeder)
	case len(s.Feeders) > 1:
		return setupError(ErrTooManyFeeders)
	case len(s.Formatters) > 1:
		return setupError(ErrTooManyFormatters)
	}
	return nil
}

// simpleSteps builds the steps used when the document configures none: the
// CLI feeder plus every module that needs no setup, grouped by capability.
func simpleSteps(manifests []*module.Manifest) Steps {
	var s Steps
	s.Feeders = []string{"cli_feeder"}
	for _, m := range manifests {
		if m.NeedsSetup() {
			continue
		}
		for _, c := range m.Type {
			if c == module.CapFeeder {
				continue
			}
			// A single formatter is allowed; the first one by name wins.
			if c == module.CapFormatter && len(s.Formatters) > 0 {
				continue
			}
			s.Set(c, append(s.For(c), m.Module()))
		}
	}
	return s
}

func stringList(v any) []string {
	l, ok := asList(v)
	if !ok {
		if s, isStr := v.(string); isStr && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		if s, isStr := e.(string); isStr && s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// stepsFromTree reads the steps section of a merged tree.
func stepsFromTree(tree map[string]any) Steps {
	var s Steps
	section, _ := asMap(tree["steps"])
	for _, c := range module.Capabilities {
		s.Set(c, stringList(section[stepKeys[c]]))
	}
	return s
}
