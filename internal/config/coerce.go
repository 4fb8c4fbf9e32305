package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/autoarchiver/internal/module"
)

// coercer converts a raw value (from YAML, or a string from the CLI) into the
// declared option type.
type coercer func(spec module.OptionSpec, v any) (any, error)

// coercers is the closed table of option converters.
var coercers = map[module.OptionType]coercer{
	module.TypeString: coerceString,
	module.TypeInt:    coerceInt,
	module.TypeBool:   coerceBool,
	module.TypeCSV:    coerceCSV,
	module.TypeJSON:   coerceJSON,
	module.TypeChoice: coerceChoice,
}

var errNotInChoices = errors.New("value not in choices")

// Coerce converts v according to the option schema. Choices are enforced for
// every type that declares them.
func Coerce(spec module.OptionSpec, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := coercers[spec.EffectiveType()]
	if !ok {
		return nil, fmt.Errorf("unknown option type %q", spec.EffectiveType())
	}
	out, err := c(spec, v)
	if err != nil {
		return nil, err
	}
	if len(spec.Choices) > 0 {
		if err := checkChoices(spec.Choices, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkChoices(choices []string, v any) error {
	check := func(s string) error {
		if !slices.Contains(choices, s) {
			return fmt.Errorf("%w %v: %q", errNotInChoices, choices, s)
		}
		return nil
	}
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			if err := check(s); err != nil {
				return err
			}
		}
		return nil
	default:
		return check(fmt.Sprint(x))
	}
}

func coerceString(_ module.OptionSpec, v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case map[string]any, []any, []string:
		return nil, fmt.Errorf("expected a string, got %T", v)
	default:
		return fmt.Sprint(x), nil
	}
}

func coerceInt(_ module.OptionSpec, v any) (any, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		if x > math.MaxInt {
			return nil, fmt.Errorf("integer %d out of range", x)
		}
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("expected an integer, got %v", x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("expected an integer: %w", err)
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected an integer, got %T", v)
}

func coerceBool(_ module.OptionSpec, v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %q", x)
	case int:
		return x != 0, nil
	}
	return nil, fmt.Errorf("expected a boolean, got %T", v)
}

// coerceCSV produces a deduplicated string list. A string is split on commas.
func coerceCSV(_ module.OptionSpec, v any) (any, error) {
	var raw []string
	switch x := v.(type) {
	case string:
		raw = strings.Split(x, ",")
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			if _, isMap := asMap(e); isMap {
				return nil, fmt.Errorf("expected a list of strings, got %T element", e)
			}
			raw = append(raw, fmt.Sprint(e))
		}
	default:
		return nil, fmt.Errorf("expected a comma separated list, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// coerceJSON parses strings as JSON and passes structured values through.
func coerceJSON(_ module.OptionSpec, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("expected JSON: %w", err)
	}
	return out, nil
}

func coerceChoice(spec module.OptionSpec, v any) (any, error) {
	s, err := coerceString(spec, v)
	if err != nil {
		return nil, err
	}
	return s, nil
}
