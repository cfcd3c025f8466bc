package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrStateClosed is returned after Close.
	ErrStateClosed = errors.New("rules state is closed")

	// ErrNoRule is returned when no rule handles an action.
	ErrNoRule = errors.New("no rule for action")
)

// RuleError reports a failure inside a rule script.
type RuleError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}
