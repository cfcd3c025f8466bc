package access

import (
	"errors"
	"fmt"
)

// Sentinel errors for the access engine.
var (
	// ErrNoCatalogue is returned when an operation needs a loaded catalogue.
	ErrNoCatalogue = errors.New("no catalogue loaded")

	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid access configuration")

	// ErrDegraded is returned by Load when the configuration was rejected and
	// the engine fell back to direct selection.
	ErrDegraded = errors.New("scanning disabled, direct selection only")

	// ErrNilSource is returned when a Runner is started without a source.
	ErrNilSource = errors.New("event source cannot be nil")

	// ErrStopped is returned by requests made to a stopped Runner.
	ErrStopped = errors.New("access runner is stopped")
)

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("access config %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
