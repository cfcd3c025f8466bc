package access

import (
	"time"

	"github.com/dshills/scanboard/internal/catalog"
)

// Kind is the type of a normalized access event.
type Kind uint8

const (
	// KindEnter means the pointer entered a target. From the Debouncer it
	// means the hover has settled.
	KindEnter Kind = iota + 1
	// KindLeave means the pointer left a target.
	KindLeave
	// KindPress means a pointer or switch went down.
	KindPress
	// KindRelease means a pointer or switch went up.
	KindRelease
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindEnter:
		return "enter"
	case KindLeave:
		return "leave"
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	default:
		return "unknown"
	}
}

// RawKind is the platform input event type.
type RawKind uint8

const (
	RawDown RawKind = iota + 1
	RawUp
	RawMove
	RawOver
	RawOut
	RawContextMenu
	// RawSwitchDown and RawSwitchUp come from an external switch and carry
	// no element.
	RawSwitchDown
	RawSwitchUp
)

var rawKindNames = map[RawKind]string{
	RawDown:        "down",
	RawUp:          "up",
	RawMove:        "move",
	RawOver:        "over",
	RawOut:         "out",
	RawContextMenu: "contextmenu",
	RawSwitchDown:  "switchdown",
	RawSwitchUp:    "switchup",
}

// String returns the string representation of the raw kind.
func (k RawKind) String() string {
	if s, ok := rawKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseRawKind is the inverse of RawKind.String.
func ParseRawKind(s string) (RawKind, bool) {
	for k, name := range rawKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// RawEvent is one platform input event.
type RawEvent struct {
	Kind      RawKind
	Element   catalog.ElementID
	PointerID int
	Time      time.Time
}

// Event is a normalized access event. A Press or Release with an empty
// TargetID comes from an external switch.
type Event struct {
	TargetID catalog.TargetID
	Kind     Kind
	Time     time.Time
}

// IsSwitch reports whether the event came from an external switch.
func (e Event) IsSwitch() bool {
	return e.TargetID == "" && (e.Kind == KindPress || e.Kind == KindRelease)
}
