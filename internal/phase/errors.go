package phase

import (
	"errors"
	"fmt"
)

// ConfigError marks a missing prerequisite that retrying cannot fix: an
// unknown brand, a missing plan, a draft that was never written. Consumers
// fail the phase immediately instead of burning retry attempts.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

// NewConfigError formats a configuration error.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a fail-fast configuration error.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
