package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by catalogue construction and loading.
var (
	// ErrMalformedHierarchy is wrapped by every ValidationError.
	ErrMalformedHierarchy = errors.New("malformed hierarchy")

	// ErrNilRoot is returned when a catalogue is built without a root group.
	ErrNilRoot = errors.New("catalogue root is nil")
)

// ValidationError lists every problem found in a hierarchy.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "malformed hierarchy: " + e.Problems[0]
	}
	return fmt.Sprintf("malformed hierarchy: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Unwrap allows errors.Is(err, ErrMalformedHierarchy).
func (e *ValidationError) Unwrap() error {
	return ErrMalformedHierarchy
}

// problems accumulates validation failures.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

// LoadError reports a catalogue file that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading catalogue %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
