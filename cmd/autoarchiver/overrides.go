package main

import "strings"

// splitOverrides separates --module.option tokens from the arguments cobra
// parses. "--a.b=v" and "--a.b v" both set a.b; a token followed by another
// flag, or by nothing, is a boolean switch set to "true". Repeating a path
// concatenates the values with commas, which list options split again.
// Arguments after "--" are never treated as overrides.
func splitOverrides(args []string) ([]string, map[string]string) {
	overrides := make(map[string]string)
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		name, ok := strings.CutPrefix(arg, "--")
		if !ok || !isDottedPath(name) {
			rest = append(rest, arg)
			continue
		}

		path, value, hasValue := strings.Cut(name, "=")
		if !hasValue {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				value = args[i+1]
				i++
			} else {
				value = "true"
			}
		}
		if prev, ok := overrides[path]; ok {
			value = prev + "," + value
		}
		overrides[path] = value
	}
	return rest, overrides
}

// isDottedPath reports whether a flag name (possibly with "=value") is a
// module.option path. None of the regular flags contain a dot.
func isDottedPath(name string) bool {
	path, _, _ := strings.Cut(name, "=")
	mod, opt, ok := strings.Cut(path, ".")
	return ok && mod != "" && opt != ""
}
