package access

import (
	"testing"

	"github.com/dshills/scanboard/internal/catalog"
)

type fakeLookup map[catalog.ElementID]catalog.TargetID

func (f fakeLookup) Lookup(el catalog.ElementID) (catalog.TargetID, bool) {
	id, ok := f[el]
	return id, ok
}

type fakeCapturer struct {
	captured map[catalog.ElementID]int
	released []catalog.ElementID
}

func (f *fakeCapturer) HasPointerCapture(el catalog.ElementID, pointerID int) bool {
	id, ok := f.captured[el]
	return ok && id == pointerID
}

func (f *fakeCapturer) ReleasePointerCapture(el catalog.ElementID, pointerID int) {
	delete(f.captured, el)
	f.released = append(f.released, el)
}

func TestNormalize(t *testing.T) {
	lookup := fakeLookup{"btn-1": "t1"}

	tests := []struct {
		name     string
		raw      RawEvent
		wantKind Kind
		wantID   catalog.TargetID
		want     Disposition
	}{
		{"down", RawEvent{Kind: RawDown, Element: "btn-1"}, KindPress, "t1", Disposition{Emitted: true}},
		{"up", RawEvent{Kind: RawUp, Element: "btn-1"}, KindRelease, "t1", Disposition{Emitted: true}},
		{"over", RawEvent{Kind: RawOver, Element: "btn-1"}, KindEnter, "t1", Disposition{Emitted: true}},
		{"out", RawEvent{Kind: RawOut, Element: "btn-1"}, KindLeave, "t1", Disposition{Emitted: true}},
		{"move", RawEvent{Kind: RawMove, Element: "btn-1"}, 0, "", Disposition{}},
		{"context menu", RawEvent{Kind: RawContextMenu, Element: "btn-1"}, 0, "", Disposition{PreventDefault: true}},
		{"unknown element", RawEvent{Kind: RawOver, Element: "div-9"}, 0, "", Disposition{Dropped: true}},
		{"no element", RawEvent{Kind: RawDown}, 0, "", Disposition{Dropped: true}},
		{"switch down", RawEvent{Kind: RawSwitchDown}, KindPress, "", Disposition{Emitted: true}},
		{"switch up", RawEvent{Kind: RawSwitchUp}, KindRelease, "", Disposition{Emitted: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(lookup, nil)
			ev, disp := n.Normalize(tt.raw)
			if disp != tt.want {
				t.Errorf("Normalize() disposition = %+v, want %+v", disp, tt.want)
			}
			if !disp.Emitted {
				return
			}
			if ev.Kind != tt.wantKind || ev.TargetID != tt.wantID {
				t.Errorf("Normalize() = %v %q, want %v %q", ev.Kind, ev.TargetID, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestNormalizeReleasesCapture(t *testing.T) {
	capt := &fakeCapturer{captured: map[catalog.ElementID]int{"btn-1": 7}}
	n := NewNormalizer(fakeLookup{"btn-1": "t1"}, capt)

	ev, disp := n.Normalize(RawEvent{Kind: RawDown, Element: "btn-1", PointerID: 7})
	if !disp.CaptureReleased || !disp.Emitted {
		t.Errorf("disposition = %+v, want capture released and emitted", disp)
	}
	if ev.Kind != KindPress {
		t.Errorf("Kind = %v, want press", ev.Kind)
	}
	if len(capt.released) != 1 || capt.released[0] != "btn-1" {
		t.Errorf("released = %v, want [btn-1]", capt.released)
	}

	// A different pointer holds no capture.
	_, disp = n.Normalize(RawEvent{Kind: RawDown, Element: "btn-1", PointerID: 8})
	if disp.CaptureReleased {
		t.Error("capture released for a pointer that held none")
	}
	if got := n.Stats().CapturesReleased; got != 1 {
		t.Errorf("Stats().CapturesReleased = %d, want 1", got)
	}
}

func TestNormalizeStats(t *testing.T) {
	n := NewNormalizer(fakeLookup{"b": "t"}, nil)
	n.Normalize(RawEvent{Kind: RawOver, Element: "b"})
	n.Normalize(RawEvent{Kind: RawOver, Element: "x"})
	n.Normalize(RawEvent{Kind: RawContextMenu})

	s := n.Stats()
	if s.Seen != 3 || s.Emitted != 1 || s.Dropped != 1 || s.Suppressed != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestParseRawKind(t *testing.T) {
	for k, name := range rawKindNames {
		got, ok := ParseRawKind(name)
		if !ok || got != k {
			t.Errorf("ParseRawKind(%q) = %v, %v, want %v", name, got, ok, k)
		}
	}
	if _, ok := ParseRawKind("wiggle"); ok {
		t.Error("ParseRawKind(wiggle) should fail")
	}
}
