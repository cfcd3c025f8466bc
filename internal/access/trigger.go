package access

import (
	"fmt"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
)

// Action is what a trigger asks the Sequencer to do.
type Action uint8

const (
	// ActionSelect commits immediately.
	ActionSelect Action = iota + 1
	// ActionHold starts a press; the Sequencer awaits the release.
	ActionHold
	// ActionRelease ends a press.
	ActionRelease
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionSelect:
		return "select"
	case ActionHold:
		return "hold"
	case ActionRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Signal is a selection request produced by a Trigger. An empty Target
// refers to whatever node is active.
type Signal struct {
	Trigger string
	Action  Action
	Target  catalog.TargetID
	Time    time.Time
}

// Trigger turns debounced access events into selection signals. Several
// triggers may be enabled at once; each event is offered to all of them in
// order.
type Trigger interface {
	Name() string
	Signal(ev Event) (Signal, bool)
}

// PressTrigger selects the pressed target.
type PressTrigger struct{}

// Name implements Trigger.
func (PressTrigger) Name() string { return TriggerPress }

// Signal implements Trigger.
func (PressTrigger) Signal(ev Event) (Signal, bool) {
	if ev.IsSwitch() {
		return Signal{}, false
	}
	switch ev.Kind {
	case KindPress:
		return Signal{Trigger: TriggerPress, Action: ActionHold, Target: ev.TargetID, Time: ev.Time}, true
	case KindRelease:
		return Signal{Trigger: TriggerPress, Action: ActionRelease, Target: ev.TargetID, Time: ev.Time}, true
	}
	return Signal{}, false
}

// DwellTrigger selects a target once a hover over it settles.
type DwellTrigger struct{}

// Name implements Trigger.
func (DwellTrigger) Name() string { return TriggerDwell }

// Signal implements Trigger.
func (DwellTrigger) Signal(ev Event) (Signal, bool) {
	if ev.Kind != KindEnter {
		return Signal{}, false
	}
	return Signal{Trigger: TriggerDwell, Action: ActionSelect, Target: ev.TargetID, Time: ev.Time}, true
}

// SwitchTrigger selects the active node from an external switch.
type SwitchTrigger struct{}

// Name implements Trigger.
func (SwitchTrigger) Name() string { return TriggerSwitch }

// Signal implements Trigger.
func (SwitchTrigger) Signal(ev Event) (Signal, bool) {
	if !ev.IsSwitch() {
		return Signal{}, false
	}
	action := ActionHold
	if ev.Kind == KindRelease {
		action = ActionRelease
	}
	return Signal{Trigger: TriggerSwitch, Action: action, Time: ev.Time}, true
}

// NewTriggers returns the triggers named in names, in order.
func NewTriggers(names []string) ([]Trigger, error) {
	out := make([]Trigger, 0, len(names))
	for _, name := range names {
		switch name {
		case TriggerPress:
			out = append(out, PressTrigger{})
		case TriggerDwell:
			out = append(out, DwellTrigger{})
		case TriggerSwitch:
			out = append(out, SwitchTrigger{})
		default:
			return nil, fmt.Errorf("%w: unknown trigger %q", ErrInvalidConfig, name)
		}
	}
	return out, nil
}
