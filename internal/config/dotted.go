package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Flatten converts a nested map into dotted paths, e.g.
// {"a": {"b": 1}} becomes {"a.b": 1}. Lists and scalars are leaves; an empty
// nested map is kept as a leaf so Unflatten can restore it.
func Flatten(tree map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", tree)
	return out
}

func flattenInto(out map[string]any, prefix string, tree map[string]any) {
	for k, v := range tree {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		if sub, ok := asMap(v); ok && len(sub) > 0 {
			flattenInto(out, p, sub)
			continue
		}
		out[p] = v
	}
}

// Unflatten converts dotted paths back into a nested map. Paths are applied in
// sorted order; a scalar on the way to a deeper path is replaced by a map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for _, p := range slices.Sorted(maps.Keys(flat)) {
		setPath(out, strings.Split(p, "."), flat[p])
	}
	return out
}

// setPath assigns value at the given path, creating intermediate maps.
func setPath(tree map[string]any, parts []string, value any) {
	cur := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// getPath returns the value at a dotted path.
func getPath(tree map[string]any, path string) (any, bool) {
	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// splitPath validates a dotted path and returns its parts.
func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// asMap accepts both map[string]any and the map[any]any some decoders produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
