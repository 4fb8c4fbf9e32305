package model

import (
	"reflect"
	"time"
)

// mergeValue combines a present left value with a right value.
// Maps with string keys merge recursively, lists concatenate without
// duplicates and any other combination keeps the left value. Values taken
// from right are copied, so later merges never reach into right.
func mergeValue(left, right any) any {
	if lm, ok := left.(map[string]any); ok {
		if rm, ok := right.(map[string]any); ok {
			return MergeMaps(lm, rm)
		}
	}
	if isStringMap(left) && isStringMap(right) {
		return mergeStringMaps(left, right)
	}
	if isList(left) && isList(right) {
		return concatUnique(left, right)
	}
	if !populated(left) && populated(right) {
		return deepCopy(right)
	}
	return left
}

// MergeMaps merges right into left following the Item.Merge rules and returns
// left. A nil left map is allocated. right is never modified or shared.
func MergeMaps(left, right map[string]any) map[string]any {
	if left == nil {
		left = make(map[string]any, len(right))
	}
	for k, rv := range right {
		lv, ok := left[k]
		if !ok {
			left[k] = deepCopy(rv)
			continue
		}
		left[k] = mergeValue(lv, rv)
	}
	return left
}

func isStringMap(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// mergeStringMaps merges maps keyed by strings, such as map[string]string.
// The result keeps the map type when both sides share it, otherwise it is a
// map[string]any.
func mergeStringMaps(left, right any) any {
	lv, rv := reflect.ValueOf(left), reflect.ValueOf(right)
	if lv.Type() != rv.Type() {
		return MergeMaps(toAnyMap(lv), toAnyMap(rv))
	}
	out := reflect.MakeMapWithSize(lv.Type(), lv.Len()+rv.Len())
	elem := lv.Type().Elem()
	iter := lv.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	iter = rv.MapRange()
	for iter.Next() {
		merged := deepCopy(iter.Value().Interface())
		if cur := out.MapIndex(iter.Key()); cur.IsValid() {
			merged = mergeValue(cur.Interface(), iter.Value().Interface())
		}
		out.SetMapIndex(iter.Key(), valueOf(merged, elem))
	}
	return out.Interface()
}

func toAnyMap(v reflect.Value) map[string]any {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}

// valueOf converts v for storage in a container of element type t.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Zero(t)
	}
	return rv
}

// deepCopy copies maps and slices recursively. Other values are returned
// as is.
func deepCopy(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), valueOf(deepCopy(iter.Value().Interface()), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			out.Index(i).Set(valueOf(deepCopy(rv.Index(i).Interface()), rv.Type().Elem()))
		}
		return out.Interface()
	}
	return v
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	if k != reflect.Slice && k != reflect.Array {
		return false
	}
	_, isBytes := v.([]byte)
	return !isBytes
}

// concatUnique appends the elements of right that are not already in left.
// When both slices share a type the result keeps it, otherwise it is []any.
func concatUnique(left, right any) any {
	lv, rv := reflect.ValueOf(left), reflect.ValueOf(right)
	var out reflect.Value
	if lv.Type() == rv.Type() && lv.Kind() == reflect.Slice {
		out = reflect.MakeSlice(lv.Type(), 0, lv.Len()+rv.Len())
	} else {
		out = reflect.MakeSlice(reflect.TypeFor[[]any](), 0, lv.Len()+rv.Len())
	}
	appendUnique := func(src reflect.Value) {
		for idx := range src.Len() {
			elem := src.Index(idx).Interface()
			dup := false
			for j := range out.Len() {
				if reflect.DeepEqual(out.Index(j).Interface(), elem) {
					dup = true
					break
				}
			}
			if !dup {
				out = reflect.Append(out, valueOf(deepCopy(elem), out.Type().Elem()))
			}
		}
	}
	appendUnique(lv)
	appendUnique(rv)
	return out.Interface()
}

// populated reports whether v carries information. Zero numbers and false
// count as populated; nil, empty strings and empty collections do not.
func populated(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case time.Time:
		return !x.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
