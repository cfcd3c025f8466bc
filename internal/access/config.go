package access

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Mode selects how targets are chosen.
type Mode uint8

const (
	// ModeScan walks the hierarchy on the scan interval and commits the
	// active node.
	ModeScan Mode = iota
	// ModeDirect commits whichever target is pressed or dwelt on.
	ModeDirect
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "scan"
}

// ParseMode parses "scan" or "direct".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "scan", "":
		return ModeScan, nil
	case "direct":
		return ModeDirect, nil
	}
	return 0, &ConfigError{Field: "mode", Value: s, Reason: "want scan or direct"}
}

// CommitOn selects which edge of a press commits.
type CommitOn uint8

const (
	CommitOnPress CommitOn = iota
	CommitOnRelease
)

// String returns the string representation.
func (c CommitOn) String() string {
	if c == CommitOnRelease {
		return "release"
	}
	return "press"
}

// ParseCommitOn parses "press" or "release".
func ParseCommitOn(s string) (CommitOn, error) {
	switch s {
	case "press", "":
		return CommitOnPress, nil
	case "release":
		return CommitOnRelease, nil
	}
	return 0, &ConfigError{Field: "commitOn", Value: s, Reason: "want press or release"}
}

// Trigger names accepted in Config.Triggers.
const (
	TriggerPress  = "press"
	TriggerDwell  = "dwell"
	TriggerSwitch = "switch"
)

// Config holds the engine's timing and trigger settings. It is read on every
// Load and never modified by the engine.
type Config struct {
	Mode     Mode
	Interval time.Duration
	Hold     time.Duration
	CommitOn CommitOn

	// RestartAfterSelect resumes scanning at the root after a target is
	// committed. When false the engine goes idle until the next switch press.
	RestartAfterSelect bool

	// RootCycle, when positive, is the number of passes over the root level
	// before the scan wraps. Zero uses the root group's own cycle.
	RootCycle int

	// Triggers lists the enabled trigger strategies by name.
	Triggers []string

	// HistorySize bounds the transition history.
	HistorySize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeScan,
		Interval:           time.Second,
		Hold:               500 * time.Millisecond,
		CommitOn:           CommitOnPress,
		RestartAfterSelect: true,
		Triggers:           []string{TriggerPress, TriggerSwitch},
		HistorySize:        64,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, &ConfigError{Field: "interval", Value: c.Interval, Reason: "must be positive"})
	}
	if c.Hold <= 0 {
		errs = append(errs, &ConfigError{Field: "hold", Value: c.Hold, Reason: "must be positive"})
	}
	if c.Mode != ModeScan && c.Mode != ModeDirect {
		errs = append(errs, &ConfigError{Field: "mode", Value: c.Mode, Reason: "unknown mode"})
	}
	if c.CommitOn != CommitOnPress && c.CommitOn != CommitOnRelease {
		errs = append(errs, &ConfigError{Field: "commitOn", Value: c.CommitOn, Reason: "unknown edge"})
	}
	if len(c.Triggers) == 0 {
		errs = append(errs, &ConfigError{Field: "triggers", Value: c.Triggers, Reason: "at least one trigger is required"})
	}
	for _, name := range c.Triggers {
		if !slices.Contains([]string{TriggerPress, TriggerDwell, TriggerSwitch}, name) {
			errs = append(errs, &ConfigError{Field: "triggers", Value: name, Reason: "unknown trigger"})
		}
	}
	if c.RootCycle < 0 {
		errs = append(errs, &ConfigError{Field: "rootCycle", Value: c.RootCycle, Reason: "must not be negative"})
	}
	if c.HistorySize < 0 {
		errs = append(errs, &ConfigError{Field: "historySize", Value: c.HistorySize, Reason: "must not be negative"})
	}
	return errors.Join(errs...)
}

// degraded returns the configuration used when c is rejected: default
// timings, direct selection, and every pointer trigger c asked for.
func (c Config) degraded() Config {
	d := DefaultConfig()
	d.Mode = ModeDirect
	if c.Hold > 0 {
		d.Hold = c.Hold
	}
	d.Triggers = []string{TriggerPress}
	if slices.Contains(c.Triggers, TriggerDwell) {
		d.Triggers = append(d.Triggers, TriggerDwell)
	}
	return d
}

func (c Config) String() string {
	return fmt.Sprintf("mode=%s interval=%s hold=%s commitOn=%s triggers=%v",
		c.Mode, c.Interval, c.Hold, c.CommitOn, c.Triggers)
}
