package strategos

import (
	"errors"
	"fmt"
)

// ErrUnknownAlgorithm is returned when a variant name has no entry in the
// algorithm table.
var ErrUnknownAlgorithm = errors.New("unknown algorithm name")

// ConfigError reports a rejected run-configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func configNameError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}
