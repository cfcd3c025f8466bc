package cue

import (
	"slices"
	"time"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
)

// Source tells what produced a descriptor.
type Source uint8

const (
	// SourceScan is the node cued by the scan sequencer.
	SourceScan Source = iota
	// SourceDwell is a target whose hover is settling.
	SourceDwell
)

// Descriptor is the cue for one node at one instant.
type Descriptor struct {
	// Path locates the cued node in the hierarchy.
	Path []int

	// TargetID is set when the cued node is a target.
	TargetID catalog.TargetID

	Label    string
	Active   bool
	Progress float64
	Source   Source
}

// Progress returns the fraction of d elapsed since start, clamped to [0, 1].
// A non-positive d counts as already elapsed.
func Progress(start, now time.Time, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	p := float64(now.Sub(start)) / float64(d)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Compute returns the scan cue of snap at now. It reports false when no
// node is cued.
func Compute(snap access.Snapshot, now time.Time) (Descriptor, bool) {
	st := snap.State
	if snap.Catalogue == nil || len(st.ActivePath) == 0 {
		return Descriptor{}, false
	}
	if st.Phase != access.PhaseScanning && st.Phase != access.PhaseAwaitingRelease {
		return Descriptor{}, false
	}
	node, ok := snap.Catalogue.Node(st.ActivePath)
	if !ok {
		return Descriptor{}, false
	}

	d := Descriptor{
		Path:   slices.Clone(st.ActivePath),
		Label:  node.Label(),
		Active: true,
		Source: SourceScan,
	}
	if node.IsTarget() {
		d.TargetID = node.Target.ID
	}

	// A held press freezes the scan with the cue complete.
	if st.Phase == access.PhaseAwaitingRelease {
		d.Progress = 1
	} else {
		d.Progress = Progress(st.DwellStart, now, snap.Config.Interval)
	}
	return d, true
}

// ComputeAll returns the scan cue followed by one cue per settling hover
// when the dwell trigger is enabled.
func ComputeAll(snap access.Snapshot, now time.Time) []Descriptor {
	var out []Descriptor
	if d, ok := Compute(snap, now); ok {
		out = append(out, d)
	}
	if snap.Catalogue == nil || !slices.Contains(snap.Config.Triggers, access.TriggerDwell) {
		return out
	}
	for _, h := range snap.Hovers {
		t, ok := snap.Catalogue.Target(h.TargetID)
		if !ok {
			continue
		}
		out = append(out, Descriptor{
			Path:     t.Position(),
			TargetID: t.ID,
			Label:    t.Label,
			Active:   true,
			Progress: Progress(h.Since, now, h.Hold),
			Source:   SourceDwell,
		})
	}
	return out
}

// Covers reports whether t lies under the cued node.
func (d Descriptor) Covers(t *catalog.Target) bool {
	return catalog.HasPrefix(t.Position(), d.Path)
}

// Equal reports whether two descriptors cue the same node with the same
// progress.
func (d Descriptor) Equal(o Descriptor) bool {
	return d.Active == o.Active &&
		d.Progress == o.Progress &&
		d.Source == o.Source &&
		d.TargetID == o.TargetID &&
		slices.Equal(d.Path, o.Path)
}
