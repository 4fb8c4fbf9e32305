package module

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup classifies every failure that prevents a run from starting.
	// The CLI exits non-zero only for errors wrapping it.
	ErrSetup = errors.New("setup error")

	// ErrUnrecoverable may be wrapped by storage errors that should fail the
	// whole item rather than the single asset.
	ErrUnrecoverable = errors.New("unrecoverable error")

	// ErrUnknownModule is returned when a name is not in the registry.
	ErrUnknownModule = errors.New("unknown module")

	// ErrDuplicateModule is returned by Discover when two roots provide the
	// same module name.
	ErrDuplicateModule = errors.New("duplicate module")

	// ErrInvalidManifest is returned for manifests that fail validation.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// SetupError reports why a module could not be materialized.
// Missing enumerates every unmet dependency or option so the user can fix
// them all at once.
type SetupError struct {
	Module  string
	Missing []string
	Err     error
}

func (e *SetupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %q", e.Module)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both ErrSetup and the underlying cause.
func (e *SetupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSetup}
	}
	return []error{ErrSetup, e.Err}
}
