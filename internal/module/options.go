package module

import (
	"fmt"
	"maps"
	"strconv"
	"time"
)

// Options holds the resolved option values of one module. Values have already
// been coerced to the declared type: string, int, bool, []string or any JSON
// value.
type Options map[string]any

// Clone returns a shallow copy.
func (o Options) Clone() Options { return maps.Clone(o) }

// Has reports whether the option is set to a non-nil value.
func (o Options) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// String returns the option as a string.
func (o Options) String(key string) string {
	switch v := o[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the option as an int, or 0.
func (o Options) Int(key string) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Bool returns the option as a bool, or false.
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Strings returns the option as a string list.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Seconds returns an int option as a duration in seconds.
func (o Options) Seconds(key string) time.Duration {
	return time.Duration(o.Int(key)) * time.Second
}
