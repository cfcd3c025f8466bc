package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates the application is not running.
	ErrNotRunning = errors.New("application not running")

	// ErrNoCatalogue indicates no board file was configured.
	ErrNoCatalogue = errors.New("no board catalogue configured")

	// ErrNotTerminal indicates the terminal board was asked to run without
	// a terminal.
	ErrNotTerminal = errors.New("standard input is not a terminal")
)

// InitError represents a failure to set up one component.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ReloadError represents a failed live reload. The previous board stays
// active.
type ReloadError struct {
	Path string
	Err  error
}

func (e *ReloadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("reload: %v", e.Err)
	}
	return fmt.Sprintf("reload %s: %v", e.Path, e.Err)
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}
