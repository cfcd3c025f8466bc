package access

import "github.com/dshills/scanboard/internal/catalog"

// Lookup resolves a rendered element to its target. *catalog.Catalogue
// implements it.
type Lookup interface {
	Lookup(el catalog.ElementID) (catalog.TargetID, bool)
}

// Capturer exposes the platform's implicit pointer capture.
type Capturer interface {
	HasPointerCapture(el catalog.ElementID, pointerID int) bool
	ReleasePointerCapture(el catalog.ElementID, pointerID int)
}

// Disposition tells the caller what the Normalizer did with a raw event.
type Disposition struct {
	// Emitted is set when an Event was produced.
	Emitted bool

	// PreventDefault asks the platform to suppress its default action.
	PreventDefault bool

	// Dropped is set when the element did not resolve to a target.
	Dropped bool

	// CaptureReleased is set when implicit capture was undone.
	CaptureReleased bool
}

// NormalizerStats contains Normalizer counters.
type NormalizerStats struct {
	Seen             uint64
	Emitted          uint64
	Dropped          uint64
	Suppressed       uint64
	CapturesReleased uint64
}

// Normalizer converts raw platform input into access events.
// It holds no reference to rendered elements beyond the ids it is given.
type Normalizer struct {
	lookup  Lookup
	capture Capturer
	stats   NormalizerStats
}

// NewNormalizer creates a normalizer. capture may be nil on platforms
// without implicit capture.
func NewNormalizer(lookup Lookup, capture Capturer) *Normalizer {
	return &Normalizer{lookup: lookup, capture: capture}
}

// SetLookup replaces the element lookup, typically on catalogue swap.
func (n *Normalizer) SetLookup(l Lookup) {
	n.lookup = l
}

// Normalize converts raw into at most one Event.
func (n *Normalizer) Normalize(raw RawEvent) (Event, Disposition) {
	n.stats.Seen++

	var kind Kind
	switch raw.Kind {
	case RawContextMenu:
		n.stats.Suppressed++
		return Event{}, Disposition{PreventDefault: true}
	case RawMove:
		return Event{}, Disposition{}
	case RawSwitchDown:
		n.stats.Emitted++
		return Event{Kind: KindPress, Time: raw.Time}, Disposition{Emitted: true}
	case RawSwitchUp:
		n.stats.Emitted++
		return Event{Kind: KindRelease, Time: raw.Time}, Disposition{Emitted: true}
	case RawDown:
		kind = KindPress
	case RawUp:
		kind = KindRelease
	case RawOver:
		kind = KindEnter
	case RawOut:
		kind = KindLeave
	default:
		n.stats.Dropped++
		return Event{}, Disposition{Dropped: true}
	}

	var disp Disposition

	// Undo implicit capture before resolving, so hover tracking keeps
	// working even when the pressed element is not a target.
	if kind == KindPress && n.capture != nil && n.capture.HasPointerCapture(raw.Element, raw.PointerID) {
		n.capture.ReleasePointerCapture(raw.Element, raw.PointerID)
		n.stats.CapturesReleased++
		disp.CaptureReleased = true
	}

	if n.lookup == nil || raw.Element == "" {
		n.stats.Dropped++
		disp.Dropped = true
		return Event{}, disp
	}
	id, ok := n.lookup.Lookup(raw.Element)
	if !ok {
		n.stats.Dropped++
		disp.Dropped = true
		return Event{}, disp
	}

	n.stats.Emitted++
	disp.Emitted = true
	return Event{TargetID: id, Kind: kind, Time: raw.Time}, disp
}

// Stats returns the normalizer counters.
func (n *Normalizer) Stats() NormalizerStats {
	return n.stats
}
