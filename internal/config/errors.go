package config

import (
	"errors"
	"fmt"

	"github.com/nao1215/autoarchiver/internal/module"
)

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors so callers can use
// errors.Is() for programmatic handling. Every error that stops a run from
// starting is also matched by module.ErrSetup.
var (
	// ErrConfigNotFound is returned when the orchestration document does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidWorkers is returned when workers is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidLogLevel is returned for an unknown logging.level.
	ErrInvalidLogLevel = errors.New("invalid log level: must be DEBUG, INFO, WARN or ERROR")

	// ErrInvalidLogFormat is returned for an unknown logging.format.
	ErrInvalidLogFormat = errors.New("invalid log format: must be auto, text or json")

	// ErrNoFeeder is returned when steps.feeders is empty.
	ErrNoFeeder = errors.New("exactly one feeder is required")

	// ErrTooManyFeeders is returned when steps.feeders lists several modules.
	ErrTooManyFeeders = errors.New("only one feeder is allowed")

	// ErrTooManyFormatters is returned when steps.formatters lists several modules.
	ErrTooManyFormatters = errors.New("only one formatter is allowed")

	// ErrInvalidOption is returned when an option value cannot be coerced.
	ErrInvalidOption = errors.New("invalid option value")

	// ErrInvalidPath is returned for malformed dotted paths.
	ErrInvalidPath = errors.New("invalid dotted path")
)

// ValidationError reports a bad option value, tagged with its
// module.option path.
type ValidationError struct {
	Module string
	Option string
	Value  any
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %v (got %v)", e.Module, e.Option, e.Err, e.Value)
}

// Unwrap makes the error match module.ErrSetup and ErrInvalidOption.
func (e *ValidationError) Unwrap() []error {
	return []error{module.ErrSetup, ErrInvalidOption, e.Err}
}

// setupError marks a sentinel as a startup failure.
func setupError(err error) error {
	return fmt.Errorf("%w: %w", module.ErrSetup, err)
}
