package config

import "reflect"

// MergeTrees layers over on top of base and returns a new tree.
//
// Maps merge recursively, lists concatenate with duplicates removed, and any
// other value from over replaces the one in base. Neither input is modified.
func MergeTrees(base, over map[string]any) map[string]any {
	out := deepCopy(base)
	for k, ov := range over {
		bv, ok := out[k]
		if !ok {
			out[k] = deepCopyValue(ov)
			continue
		}
		out[k] = mergeTreeValue(bv, ov)
	}
	return out
}

func mergeTreeValue(base, over any) any {
	if bm, ok := asMap(base); ok {
		if om, ok := asMap(over); ok {
			return MergeTrees(bm, om)
		}
		return deepCopyValue(over)
	}
	bl, bok := asList(base)
	ol, ook := asList(over)
	if bok && ook {
		return appendUnique(bl, ol)
	}
	return deepCopyValue(over)
}

// asList normalizes []any and []string.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func appendUnique(base, over []any) []any {
	out := make([]any, 0, len(base)+len(over))
	for _, src := range [][]any{base, over} {
		for _, v := range src {
			dup := false
			for _, e := range out {
				if reflect.DeepEqual(e, v) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, v)
			}
		}
	}
	return out
}

func deepCopy(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	if m, ok := asMap(v); ok {
		return deepCopy(m)
	}
	switch l := v.(type) {
	case []any:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), l...)
	}
	return v
}
