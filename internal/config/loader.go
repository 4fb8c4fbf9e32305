package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// Document is the persisted orchestration document. It keeps the yaml.v3 node
// tree for lookups and the original bytes, so that storing writes back the
// source text with only the edited entries changed.
type Document struct {
	raw  []byte
	root *yaml.Node
	// edits are the dotted paths changed by Set, in call order.
	edits []string
}

// ParseDocument parses YAML. Empty input yields an empty document.
func ParseDocument(data []byte) (*Document, error) {
	d := &Document{raw: bytes.Clone(data)}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode}
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) == 0 {
		root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("failed to parse configuration: top level must be a mapping")
	}
	d.root = &root
	return d, nil
}

// LoadDocument reads the document at path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return ParseDocument(data)
}

// DefaultDocument returns the commented template document.
func DefaultDocument() *Document {
	d, err := ParseDocument(Template())
	if err != nil {
		panic(fmt.Sprintf("embedded template is invalid: %v", err))
	}
	return d
}

// FindConfigFile searches for the document in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for orchestration.yaml in the current directory
// 3. Look for orchestration.yaml in the XDG config directory
//
// Returns the path to the document if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(XDGConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// Map decodes the document into a plain nested map.
func (d *Document) Map() (map[string]any, error) {
	out := make(map[string]any)
	if err := d.root.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return out, nil
}

// Get returns the value at a dotted path.
func (d *Document) Get(path string) (any, bool) {
	m, err := d.Map()
	if err != nil {
		return nil, false
	}
	return getPath(m, path)
}

// Set replaces the value at a dotted path, creating missing sections.
// Comments attached to the replaced value are kept.
func (d *Document) Set(path string, value any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	cur := d.root.Content[0]
	for i, part := range parts {
		last := i == len(parts)-1
		idx := mappingIndex(cur, part)
		if idx < 0 {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: part}
			var child *yaml.Node
			if last {
				child = &valueNode
			} else {
				child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			}
			cur.Content = append(cur.Content, key, child)
			cur = child
			continue
		}
		existing := cur.Content[idx+1]
		if last {
			valueNode.HeadComment = existing.HeadComment
			valueNode.LineComment = existing.LineComment
			valueNode.FootComment = existing.FootComment
			valueNode.Style = keepFlowStyle(existing, &valueNode)
			cur.Content[idx+1] = &valueNode
			break
		}
		if existing.Kind != yaml.MappingNode {
			replacement := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", LineComment: existing.LineComment}
			cur.Content[idx+1] = replacement
			existing = replacement
		}
		cur = existing
	}
	if !slices.Contains(d.edits, path) {
		d.edits = append(d.edits, path)
	}
	return nil
}

// keepFlowStyle keeps "[a, b]" lists in flow style when they are replaced.
func keepFlowStyle(old, replacement *yaml.Node) yaml.Style {
	if old.Kind == replacement.Kind && old.Style&yaml.FlowStyle != 0 {
		return replacement.Style | yaml.FlowStyle
	}
	return replacement.Style
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// Bytes returns the serialized document. An unedited document returns the
// bytes it was parsed from. Edits are patched into the source text, so
// indentation, blank lines and comments outside the edited entries are kept;
// when an edit cannot be patched the whole tree is re-encoded with the
// document's own indentation.
func (d *Document) Bytes() ([]byte, error) {
	if len(d.edits) == 0 {
		return bytes.Clone(d.raw), nil
	}
	if data, err := d.patched(); err == nil {
		return data, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(detectIndent(d.raw))
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the document to path under an advisory lock, replacing the file
// atomically.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock configuration: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	tmp, err := os.CreateTemp(dir, "."+strings.TrimPrefix(filepath.Base(path), ".")+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	d.raw = data
	d.edits = nil
	return nil
}
