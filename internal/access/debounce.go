package access

import (
	"slices"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/schedule"
)

const dwellKeyPrefix = "dwell/"

// dwellTimer is the hover state of one target.
type dwellTimer struct {
	target    catalog.TargetID
	startedAt time.Time
	hold      time.Duration
	epoch     uint64
	seq       uint64

	// pending is the kind waiting to settle, or 0.
	pending Kind

	// entered is set once an Enter has settled and no Leave has since.
	entered bool
}

// Hover describes a target whose Enter is waiting to settle.
type Hover struct {
	TargetID catalog.TargetID
	Since    time.Time
	Hold     time.Duration
}

// DebouncerStats contains Debouncer counters.
type DebouncerStats struct {
	Settled    uint64
	Left       uint64
	Grazes     uint64
	Duplicates uint64
	Stale      uint64
	Passed     uint64
}

// Debouncer splits access events per target and emits an Enter only after
// the pointer has stayed on the target for the hold threshold. Each
// continuous hover settles at most once; a settled Leave must follow before
// the same target can settle again. Press and Release pass straight through.
type Debouncer struct {
	hold   time.Duration
	timers *schedule.Queue
	has    func(catalog.TargetID) bool
	emit   func(Event)
	hovers map[catalog.TargetID]*dwellTimer
	epoch  uint64
	seq    uint64
	stats  DebouncerStats
}

// NewDebouncer creates a debouncer whose timers live in q. has reports
// whether a target is in the current catalogue; emit receives settled and
// passed-through events.
func NewDebouncer(q *schedule.Queue, hold time.Duration, has func(catalog.TargetID) bool, emit func(Event)) *Debouncer {
	return &Debouncer{
		hold:   hold,
		timers: q,
		has:    has,
		emit:   emit,
		hovers: make(map[catalog.TargetID]*dwellTimer),
	}
}

// Feed processes one normalized event.
func (d *Debouncer) Feed(ev Event) {
	if ev.IsSwitch() {
		d.stats.Passed++
		d.emit(ev)
		return
	}
	if d.has == nil || !d.has(ev.TargetID) {
		d.stats.Stale++
		return
	}

	switch ev.Kind {
	case KindPress, KindRelease:
		d.stats.Passed++
		d.emit(ev)
	case KindEnter:
		d.enter(ev)
	case KindLeave:
		d.leave(ev)
	}
}

func (d *Debouncer) enter(ev Event) {
	h := d.hovers[ev.TargetID]
	if h == nil {
		h = &dwellTimer{target: ev.TargetID, hold: d.hold, epoch: d.epoch}
		d.hovers[ev.TargetID] = h
	}
	if h.pending == KindEnter {
		d.stats.Duplicates++
		return
	}
	d.cancel(h)
	if h.entered {
		// Back before the Leave settled; the hover never ended.
		return
	}
	d.arm(h, KindEnter, ev.Time)
}

func (d *Debouncer) leave(ev Event) {
	h := d.hovers[ev.TargetID]
	if h == nil {
		return
	}
	if h.pending == KindLeave {
		d.stats.Duplicates++
		return
	}
	wasPending := h.pending == KindEnter
	d.cancel(h)
	if !h.entered {
		if wasPending {
			d.stats.Grazes++
		}
		delete(d.hovers, h.target)
		return
	}
	d.arm(h, KindLeave, ev.Time)
}

func (d *Debouncer) arm(h *dwellTimer, kind Kind, from time.Time) {
	d.seq++
	seq := d.seq
	epoch := d.epoch
	h.pending = kind
	h.seq = seq
	h.startedAt = from
	d.timers.Schedule(dwellKeyPrefix+string(h.target), from.Add(h.hold), func(at time.Time) {
		cur := d.hovers[h.target]
		if cur != h || epoch != d.epoch || h.seq != seq {
			return
		}
		d.settle(h, at)
	})
}

func (d *Debouncer) cancel(h *dwellTimer) {
	if h.pending != 0 {
		d.timers.Cancel(dwellKeyPrefix + string(h.target))
		h.pending = 0
	}
}

func (d *Debouncer) settle(h *dwellTimer, at time.Time) {
	kind := h.pending
	h.pending = 0
	switch kind {
	case KindEnter:
		h.entered = true
		d.stats.Settled++
	case KindLeave:
		delete(d.hovers, h.target)
		d.stats.Left++
	}
	d.emit(Event{TargetID: h.target, Kind: kind, Time: at})
}

// Reset cancels every dwell timer and forgets all hover state.
func (d *Debouncer) Reset() {
	for _, h := range d.hovers {
		d.cancel(h)
	}
	clear(d.hovers)
	d.epoch++
}

// SetHold changes the threshold for hovers that start after the call.
func (d *Debouncer) SetHold(hold time.Duration) {
	d.hold = hold
}

// Pending returns the number of armed dwell timers.
func (d *Debouncer) Pending() int {
	n := 0
	for _, h := range d.hovers {
		if h.pending != 0 {
			n++
		}
	}
	return n
}

// Hovers returns targets whose Enter is waiting to settle, ordered by start.
func (d *Debouncer) Hovers() []Hover {
	var out []Hover
	for _, h := range d.hovers {
		if h.pending == KindEnter {
			out = append(out, Hover{TargetID: h.target, Since: h.startedAt, Hold: h.hold})
		}
	}
	slices.SortFunc(out, func(a, b Hover) int {
		if c := a.Since.Compare(b.Since); c != 0 {
			return c
		}
		if a.TargetID < b.TargetID {
			return -1
		}
		if a.TargetID > b.TargetID {
			return 1
		}
		return 0
	})
	return out
}

// Entered reports whether the hover on id has settled.
func (d *Debouncer) Entered(id catalog.TargetID) bool {
	h := d.hovers[id]
	return h != nil && h.entered
}

// Stats returns the debouncer counters.
func (d *Debouncer) Stats() DebouncerStats {
	return d.stats
}
