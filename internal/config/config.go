package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "autoarchiver"

	// DefaultConfigFile is the orchestration document read when --config is
	// not given.
	DefaultConfigFile = "orchestration.yaml"

	// DefaultLogLevel matches the level written by the template document.
	DefaultLogLevel = "INFO"

	// DefaultLogFormat picks text on a terminal and JSON otherwise.
	DefaultLogFormat = "auto"

	// DefaultWorkers processes items one at a time, in feed order.
	DefaultWorkers = 1
)

// Valid log levels and formats, as written in the document.
var (
	logLevels  = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
	logFormats = []string{"auto", "text", "json"}
)

// Config holds the global settings of a run. Module options are not part of
// it; they are resolved per module by the Resolver.
//
// Design decision: We keep global settings in a flat struct populated from
// the document and CLI flags, the same way module options are layered, so a
// single document controls everything a run needs.
type Config struct {
	// ConfigFilePath is the orchestration document path.
	ConfigFilePath string

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string

	// LogFormat is auto, text or json.
	LogFormat string

	// LogFile additionally writes logs to this file when set.
	LogFile string

	// Verbose forces DEBUG regardless of LogLevel.
	Verbose bool

	// ModulePaths are extra directories searched for modules, after the
	// built-in ones.
	ModulePaths []string

	// Workers is the number of items processed concurrently.
	Workers int

	// AllowPrivateURLs disables the localhost/private address check.
	AllowPrivateURLs bool

	// Store writes the effective configuration back to ConfigFilePath.
	Store bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ConfigFilePath: DefaultConfigFile,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		Workers:        DefaultWorkers,
	}
}

// XDGDataDir returns the XDG data directory for the archiver.
// On Linux: ~/.local/share/autoarchiver
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the archiver.
// On Linux: ~/.config/autoarchiver
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings and returns the first problem found.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if !slices.Contains(logLevels, strings.ToUpper(c.LogLevel)) {
		return ErrInvalidLogLevel
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		return ErrInvalidLogFormat
	}
	return nil
}
