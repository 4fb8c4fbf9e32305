package config

import (
	"bytes"
	"errors"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// errUnpatchable is returned when an edit cannot be applied to the source text.
var errUnpatchable = errors.New("edit cannot be applied to the source text")

// patched applies every recorded edit to the source text. Values come from
// the node tree; the result must decode to the same configuration.
func (d *Document) patched() ([]byte, error) {
	text := d.raw
	for _, path := range d.edits {
		var err error
		if text, err = d.patch(text, path); err != nil {
			return nil, err
		}
	}

	got, err := ParseDocument(text)
	if err != nil {
		return nil, errUnpatchable
	}
	gotMap, err := got.Map()
	if err != nil {
		return nil, errUnpatchable
	}
	wantMap, err := d.Map()
	if err != nil || !reflect.DeepEqual(gotMap, wantMap) {
		return nil, errUnpatchable
	}
	return text, nil
}

// patch rewrites the entry of text that holds path. An existing entry is
// replaced, a missing one is inserted after the last entry of its parent.
func (d *Document) patch(text []byte, path string) ([]byte, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var root yaml.Node
	if err := yaml.Unmarshal(text, &root); err != nil {
		return nil, errUnpatchable
	}
	lines := splitLines(text)
	if root.Kind == 0 || len(root.Content) == 0 || root.Content[0].Tag == "!!null" {
		return d.appendEntry(lines, parts[:1])
	}

	m := root.Content[0]
	if m.Kind != yaml.MappingNode || m.Style&yaml.FlowStyle != 0 {
		return nil, errUnpatchable
	}
	var key, val *yaml.Node
	for i, part := range parts {
		if i > 0 && m.Style&yaml.FlowStyle != 0 {
			return d.replaceEntry(lines, key, val, parts[:i])
		}
		idx := mappingIndex(m, part)
		if idx < 0 {
			if i == 0 {
				return d.appendEntry(lines, parts[:1])
			}
			return d.insertEntry(lines, m, parts[:i+1])
		}
		key, val = m.Content[idx], m.Content[idx+1]
		if i == len(parts)-1 || val.Kind != yaml.MappingNode {
			return d.replaceEntry(lines, key, val, parts[:i+1])
		}
		m = val
	}
	return nil, errUnpatchable
}

// node returns the edited value at path.
func (d *Document) node(path []string) (*yaml.Node, error) {
	cur := d.root.Content[0]
	for _, part := range path {
		idx := mappingIndex(cur, part)
		if idx < 0 {
			return nil, errUnpatchable
		}
		cur = cur.Content[idx+1]
	}
	return cur, nil
}

// replaceEntry rewrites the value of key. Single-line values are replaced in
// place, keeping the text around them; other entries are re-rendered over
// the lines they span.
func (d *Document) replaceEntry(lines []string, key, val *yaml.Node, path []string) ([]byte, error) {
	final, err := d.node(path)
	if err != nil {
		return nil, err
	}

	if val.Line == key.Line && inlineValue(val) {
		if text, ok := renderInline(final); ok {
			line := lines[val.Line-1]
			start := byteOffset(line, val.Column)
			if end, ok := valueEnd(line, start); ok {
				lines[val.Line-1] = line[:start] + text + line[end:]
				return []byte(strings.Join(lines, "")), nil
			}
		}
	}

	prefix, ok := keyIndent(lines, key)
	if !ok {
		return nil, errUnpatchable
	}
	k := &yaml.Node{Kind: key.Kind, Style: key.Style, Tag: key.Tag, Value: key.Value, LineComment: key.LineComment}
	if k.LineComment == "" {
		k.LineComment = val.LineComment
	}
	v := *final
	v.HeadComment, v.LineComment, v.FootComment = "", "", ""
	block, err := renderEntry(k, &v, prefix, detectIndent(d.raw))
	if err != nil {
		return nil, err
	}
	return splice(lines, key.Line-1, blockEnd(lines, key), block), nil
}

// insertEntry adds the missing last element of path below the last entry of
// the block mapping m.
func (d *Document) insertEntry(lines []string, m *yaml.Node, path []string) ([]byte, error) {
	final, err := d.node(path)
	if err != nil {
		return nil, err
	}
	last := m.Content[len(m.Content)-2]
	prefix, ok := keyIndent(lines, last)
	if !ok {
		return nil, errUnpatchable
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[len(path)-1]}
	block, err := renderEntry(k, final, prefix, detectIndent(d.raw))
	if err != nil {
		return nil, err
	}
	end := blockEnd(lines, last)
	return splice(lines, end, end, block), nil
}

// appendEntry adds a top-level section at the end of the document.
func (d *Document) appendEntry(lines []string, path []string) ([]byte, error) {
	final, err := d.node(path)
	if err != nil {
		return nil, err
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	block, err := renderEntry(k, final, "", detectIndent(d.raw))
	if err != nil {
		return nil, err
	}
	return splice(lines, len(lines), len(lines), block), nil
}

// splitLines splits text after every newline.
func splitLines(text []byte) []string {
	lines := strings.SplitAfter(string(text), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// splice replaces lines[from:to] with block.
func splice(lines []string, from, to int, block string) []byte {
	var b strings.Builder
	for _, l := range lines[:from] {
		b.WriteString(l)
	}
	if from > 0 && !strings.HasSuffix(lines[from-1], "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(block)
	for _, l := range lines[to:] {
		b.WriteString(l)
	}
	return []byte(b.String())
}

// renderEntry encodes "key: value" as a block, every line prefixed.
func renderEntry(key, value *yaml.Node, prefix string, indent int) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{key, value}}); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, l := range splitLines(buf.Bytes()) {
		if strings.TrimSpace(l) != "" {
			b.WriteString(prefix)
		}
		b.WriteString(l)
	}
	return b.String(), nil
}

// inlineValue reports whether val is written on one line after its key.
func inlineValue(val *yaml.Node) bool {
	switch val.Kind {
	case yaml.ScalarNode:
		if val.Tag == "!!null" && val.Value == "" {
			return false
		}
		return val.Style&(yaml.LiteralStyle|yaml.FoldedStyle) == 0
	case yaml.SequenceNode, yaml.MappingNode:
		return val.Style&yaml.FlowStyle != 0
	}
	return false
}

// renderInline encodes n on a single line, collections in flow style.
func renderInline(n *yaml.Node) (string, bool) {
	c := *n
	c.HeadComment, c.LineComment, c.FootComment = "", "", ""
	switch c.Kind {
	case yaml.SequenceNode, yaml.MappingNode:
		c.Style |= yaml.FlowStyle
	case yaml.ScalarNode:
		if c.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
			return "", false
		}
	default:
		return "", false
	}
	out, err := yaml.Marshal(&c)
	if err != nil {
		return "", false
	}
	s := strings.TrimSuffix(string(out), "\n")
	if s == "" || strings.Contains(s, "\n") {
		return "", false
	}
	return s, true
}

// valueEnd returns the byte offset just past the single-line value starting
// at start, excluding a trailing comment and spaces.
func valueEnd(line string, start int) (int, bool) {
	if start >= len(line) {
		return 0, false
	}
	switch line[start] {
	case '[', '{':
		depth := 0
		for i := start; i < len(line); i++ {
			switch line[i] {
			case '"', '\'':
				j, ok := quoteEnd(line, i)
				if !ok {
					return 0, false
				}
				i = j - 1
			case '[', '{':
				depth++
			case ']', '}':
				depth--
				if depth == 0 {
					return i + 1, true
				}
			}
		}
		return 0, false
	case '"', '\'':
		return quoteEnd(line, start)
	case '|', '>', '&', '*', '!':
		return 0, false
	}
	end := len(strings.TrimRight(line, "\r\n"))
	for i := start + 1; i < end; i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			end = i
			break
		}
	}
	return len(strings.TrimRight(line[:end], " \t")), true
}

// quoteEnd returns the offset just past the quoted scalar opening at start.
func quoteEnd(line string, start int) (int, bool) {
	q := line[start]
	for i := start + 1; i < len(line); i++ {
		switch {
		case q == '"' && line[i] == '\\':
			i++
		case line[i] == q:
			if q == '\'' && i+1 < len(line) && line[i+1] == '\'' {
				i++
				continue
			}
			return i + 1, true
		}
	}
	return 0, false
}

// blockEnd returns the last line (1-based) that belongs to the entry of key.
// Blank and comment lines after it are left to the following entry.
func blockEnd(lines []string, key *yaml.Node) int {
	indent := key.Column - 1
	end := key.Line
	for l := key.Line + 1; l <= len(lines); l++ {
		s := strings.TrimRight(lines[l-1], "\r\n")
		t := strings.TrimSpace(s)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		in := indentOf(s)
		if in < indent || in == indent && t != "-" && !strings.HasPrefix(t, "- ") {
			break
		}
		end = l
	}
	return end
}

// keyIndent returns the whitespace before key on its line.
func keyIndent(lines []string, key *yaml.Node) (string, bool) {
	if key.Line < 1 || key.Line > len(lines) {
		return "", false
	}
	line := lines[key.Line-1]
	prefix := line[:byteOffset(line, key.Column)]
	return prefix, strings.TrimLeft(prefix, " ") == ""
}

// byteOffset converts a 1-based character column into a byte offset.
func byteOffset(line string, column int) int {
	n := 0
	for i := range line {
		if n == column-1 {
			return i
		}
		n++
	}
	return len(line)
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

// detectIndent returns the indentation step the document uses below its
// first nested mapping key, 2 when there is none.
func detectIndent(raw []byte) int {
	prev := ""
	for _, l := range strings.Split(string(raw), "\n") {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if prev != "" && !strings.HasPrefix(t, "- ") {
			head, _, _ := strings.Cut(strings.TrimSpace(prev), " #")
			if strings.HasSuffix(strings.TrimSpace(head), ":") {
				if step := indentOf(l) - indentOf(prev); step >= 2 && step <= 9 {
					return step
				}
			}
		}
		prev = l
	}
	return 2
}
