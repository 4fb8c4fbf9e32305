package module

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Capability is one of the closed set of module roles.
type Capability string

// Capability tags.
const (
	CapFeeder    Capability = "feeder"
	CapExtractor Capability = "extractor"
	CapEnricher  Capability = "enricher"
	CapDatabase  Capability = "database"
	CapStorage   Capability = "storage"
	CapFormatter Capability = "formatter"
)

// Capabilities lists every capability in pipeline order.
var Capabilities = []Capability{CapFeeder, CapExtractor, CapEnricher, CapDatabase, CapStorage, CapFormatter}

// OptionType selects the coercer applied to an option value.
type OptionType string

// Option types.
const (
	TypeString OptionType = "string"
	TypeInt    OptionType = "int"
	TypeBool   OptionType = "bool"
	TypeCSV    OptionType = "csv"
	TypeJSON   OptionType = "json"
	TypeChoice OptionType = "choice"
)

var optionTypes = []OptionType{TypeString, TypeInt, TypeBool, TypeCSV, TypeJSON, TypeChoice}

// manifestFiles are the descriptor names that qualify a directory as a module,
// in lookup order.
var manifestFiles = []string{"manifest.yaml", "manifest.yml", "manifest.toml"}

// OptionSpec is the schema of one configuration option.
type OptionSpec struct {
	Default    any        `yaml:"default" toml:"default"`
	Required   bool       `yaml:"required" toml:"required"`
	Choices    []string   `yaml:"choices" toml:"choices"`
	Type       OptionType `yaml:"type" toml:"type"`
	Help       string     `yaml:"help" toml:"help"`
	DoNotStore bool       `yaml:"do_not_store" toml:"do_not_store"`
}

// Dependencies lists what must be available before a module materializes.
type Dependencies struct {
	// Modules are other module names materialized first.
	Modules []string `yaml:"modules" toml:"modules"`
	// Bin are executables that must be on PATH.
	Bin []string `yaml:"bin" toml:"bin"`
}

// Manifest is the descriptor of a module. It is immutable after Discover.
type Manifest struct {
	// Name is the display name.
	Name          string                `yaml:"name" toml:"name"`
	Type          []Capability          `yaml:"type" toml:"type"`
	RequiresSetup *bool                 `yaml:"requires_setup" toml:"requires_setup"`
	Description   string                `yaml:"description" toml:"description"`
	Version       string                `yaml:"version" toml:"version"`
	EntryPoint    string                `yaml:"entry_point" toml:"entry_point"`
	Dependencies  Dependencies          `yaml:"dependencies" toml:"dependencies"`
	Configs       map[string]OptionSpec `yaml:"configs" toml:"configs"`

	// module is the directory name, which is also the registry key.
	module string
	// location is "<root>:<dir>" for error messages.
	location string
}

// Module returns the registry key of the manifest.
func (m *Manifest) Module() string { return m.module }

// Location returns where the manifest was discovered.
func (m *Manifest) Location() string { return m.location }

// NeedsSetup reports whether the module needs user configuration before it
// can run. Manifests that do not say are assumed to need it.
func (m *Manifest) NeedsSetup() bool {
	return m.RequiresSetup == nil || *m.RequiresSetup
}

// Has reports whether the module advertises the capability.
func (m *Manifest) Has(c Capability) bool { return slices.Contains(m.Type, c) }

// OptionNames returns the declared option names in sorted order.
func (m *Manifest) OptionNames() []string {
	names := make([]string, 0, len(m.Configs))
	for k := range m.Configs {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// EffectiveType returns the declared type, defaulting to choice when choices
// are given and to string otherwise.
func (o OptionSpec) EffectiveType() OptionType {
	if o.Type != "" {
		return o.Type
	}
	if len(o.Choices) > 0 {
		return TypeChoice
	}
	return TypeString
}

// ParseManifest decodes a descriptor. The format is chosen from the file
// extension.
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	switch path.Ext(name) {
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, name, err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, name, err)
		}
	}
	return &m, nil
}

// readManifest looks for a descriptor in dir. It returns nil without error
// when the directory is not a module.
func readManifest(fsys fs.FS, dir string) (*Manifest, error) {
	for _, f := range manifestFiles {
		p := path.Join(dir, f)
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			continue
		}
		m, err := ParseManifest(f, data)
		if err != nil {
			return nil, err
		}
		m.module = path.Base(dir)
		if err := m.normalize(); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, nil
}

func (m *Manifest) normalize() error {
	if strings.TrimSpace(m.Name) == "" {
		m.Name = m.module
	}
	if m.Version == "" {
		m.Version = "1.0"
	}
	if m.EntryPoint == "" {
		m.EntryPoint = m.module
	}
	if len(m.Type) == 0 {
		return fmt.Errorf("%w: %s: no capability type", ErrInvalidManifest, m.module)
	}
	for _, c := range m.Type {
		if !slices.Contains(Capabilities, c) {
			return fmt.Errorf("%w: %s: unknown capability %q", ErrInvalidManifest, m.module, c)
		}
	}
	for name, opt := range m.Configs {
		if strings.Contains(name, ".") {
			return fmt.Errorf("%w: %s: option %q must not contain '.'", ErrInvalidManifest, m.module, name)
		}
		t := opt.EffectiveType()
		if !slices.Contains(optionTypes, t) {
			return fmt.Errorf("%w: %s.%s: unknown option type %q", ErrInvalidManifest, m.module, name, t)
		}
		if t == TypeChoice && len(opt.Choices) == 0 {
			return fmt.Errorf("%w: %s.%s: choice option without choices", ErrInvalidManifest, m.module, name)
		}
		if def, ok := opt.Default.(string); ok && len(opt.Choices) > 0 && !slices.Contains(opt.Choices, def) {
			return fmt.Errorf("%w: %s.%s: default %q not in choices", ErrInvalidManifest, m.module, name, def)
		}
	}
	return nil
}
