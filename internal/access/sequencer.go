package access

import (
	"log/slog"
	"slices"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/schedule"
)

const scanTimerKey = "scan"

// maxCatchUp bounds how many missed ticks are replayed after the clock jumps
// forward. Beyond it the scan restarts at the root.
const maxCatchUp = 1000

// Phase is the Sequencer's state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseAwaitingRelease
	PhaseCommitted
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseAwaitingRelease:
		return "awaiting-release"
	case PhaseCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// ScanState is a copy of the Sequencer's state.
type ScanState struct {
	// ActivePath locates the cued node: the path of its level's group
	// followed by its index. Empty when nothing is cued.
	ActivePath []int

	// CycleCount is the number of completed passes at the current level.
	CycleCount int

	Phase Phase
	Mode  Mode

	// DwellStart is when the active node became active.
	DwellStart time.Time

	// Deadline is the next auto-advance. Zero while the scan is frozen.
	Deadline time.Time

	// Epoch is the epoch of the loaded catalogue.
	Epoch uint64

	// Serial counts committed targets over the engine's lifetime.
	Serial uint64
}

func (s ScanState) clone() ScanState {
	s.ActivePath = slices.Clone(s.ActivePath)
	return s
}

// Commit is a committed target selection.
type Commit struct {
	Serial  uint64
	Target  *catalog.Target
	Trigger string
	Time    time.Time
	Epoch   uint64
}

// Transition is one entry of the Sequencer's history.
type Transition struct {
	Time   time.Time
	From   Phase
	To     Phase
	Path   []int
	Reason string
}

// SequencerStats contains Sequencer counters.
type SequencerStats struct {
	Ticks      uint64
	Wraps      uint64
	Ascents    uint64
	Descents   uint64
	Commits    uint64
	Ignored    uint64
	Duplicates uint64
}

// Sequencer walks the scan hierarchy and turns trigger signals into commits.
// Only the node on the active path can be selected while scanning.
type Sequencer struct {
	cfg      Config
	timers   *schedule.Queue
	cat      *catalog.Catalogue
	triggers []Trigger
	onCommit func(Commit)
	logger   *slog.Logger

	state        ScanState
	outer        []int // pass counts of the levels above the active one
	now          time.Time
	held         *Signal
	lastCommit   time.Time
	hasCommitted bool

	history []Transition
	next    int
	stats   SequencerStats
}

// NewSequencer creates an idle sequencer whose timer lives in q.
func NewSequencer(q *schedule.Queue, onCommit func(Commit), logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sequencer{
		cfg:      DefaultConfig(),
		timers:   q,
		onCommit: onCommit,
		logger:   logger,
	}
}

// Load replaces the hierarchy and configuration and restarts from the root.
// cfg must already be valid.
func (s *Sequencer) Load(cat *catalog.Catalogue, cfg Config, now time.Time) error {
	triggers, err := NewTriggers(cfg.Triggers)
	if err != nil {
		return err
	}

	s.freeze()
	from := s.state.Phase
	s.cat = cat
	s.cfg = cfg
	s.triggers = triggers
	s.held = nil
	s.hasCommitted = false
	s.outer = nil
	s.state = ScanState{Mode: cfg.Mode, Epoch: cat.Epoch(), Serial: s.state.Serial}
	h := s.History()
	if len(h) > cfg.HistorySize {
		h = h[len(h)-cfg.HistorySize:]
	}
	s.history, s.next = h, 0
	s.record(now, from, PhaseIdle, "load")

	if cfg.Mode == ModeScan {
		s.restart(now, "scan started")
	}
	return nil
}

// Unload cancels the scan timer and drops the hierarchy.
func (s *Sequencer) Unload(now time.Time) {
	s.freeze()
	from := s.state.Phase
	s.cat = nil
	s.held = nil
	s.state.Phase = PhaseIdle
	s.state.ActivePath = nil
	s.record(now, from, PhaseIdle, "unload")
}

// SetNow tells the sequencer the instant the clock is being advanced to.
func (s *Sequencer) SetNow(now time.Time) {
	s.now = now
}

// HandleEvent offers ev to every enabled trigger.
func (s *Sequencer) HandleEvent(ev Event) {
	for _, t := range s.triggers {
		if sig, ok := t.Signal(ev); ok {
			s.Signal(sig)
		}
	}
}

// Signal applies one trigger signal.
func (s *Sequencer) Signal(sig Signal) {
	if s.cat == nil {
		s.stats.Ignored++
		return
	}
	// Only the first selection at an instant wins.
	if sig.Action != ActionRelease && s.hasCommitted && !sig.Time.After(s.lastCommit) {
		s.stats.Duplicates++
		return
	}
	if s.state.Mode == ModeDirect {
		s.directSignal(sig)
		return
	}
	s.scanSignal(sig)
}

func (s *Sequencer) scanSignal(sig Signal) {
	switch s.state.Phase {
	case PhaseIdle:
		if sig.Action == ActionHold && sig.Trigger == TriggerSwitch {
			s.restart(sig.Time, "switch")
			return
		}
		s.stats.Ignored++

	case PhaseScanning:
		if sig.Action == ActionRelease || !s.onActivePath(sig.Target) {
			s.stats.Ignored++
			return
		}
		if sig.Action == ActionHold {
			s.hold(sig)
			if s.cfg.CommitOn == CommitOnRelease {
				return
			}
		}
		s.commitActive(sig)

	case PhaseAwaitingRelease:
		if sig.Action != ActionRelease {
			s.stats.Ignored++
			return
		}
		if !s.sameSource(sig) {
			s.cancelHold(sig.Time, PhaseScanning)
			return
		}
		s.commitActive(sig)

	default:
		s.stats.Ignored++
	}
}

func (s *Sequencer) directSignal(sig Signal) {
	if sig.Target == "" {
		s.stats.Ignored++
		return
	}
	t, ok := s.cat.Target(sig.Target)
	if !ok {
		s.stats.Ignored++
		return
	}

	switch s.state.Phase {
	case PhaseIdle:
		switch sig.Action {
		case ActionSelect:
			s.commitDirect(t, sig)
		case ActionHold:
			s.hold(sig)
			if s.cfg.CommitOn == CommitOnPress {
				s.commitDirect(t, sig)
			}
		default:
			s.stats.Ignored++
		}

	case PhaseAwaitingRelease:
		if sig.Action != ActionRelease {
			s.stats.Ignored++
			return
		}
		if !s.sameSource(sig) {
			s.cancelHold(sig.Time, PhaseIdle)
			return
		}
		s.commitDirect(t, sig)

	default:
		s.stats.Ignored++
	}
}

// onActivePath reports whether id lies under the active node. The empty id
// of a switch always refers to the active node.
func (s *Sequencer) onActivePath(id catalog.TargetID) bool {
	if len(s.state.ActivePath) == 0 {
		return false
	}
	if id == "" {
		return true
	}
	t, ok := s.cat.Target(id)
	if !ok {
		return false
	}
	return catalog.HasPrefix(t.Position(), s.state.ActivePath)
}

func (s *Sequencer) sameSource(sig Signal) bool {
	return s.held != nil && s.held.Trigger == sig.Trigger && s.held.Target == sig.Target
}

func (s *Sequencer) hold(sig Signal) {
	s.held = &sig
	s.freeze()
	from := s.state.Phase
	s.state.Phase = PhaseAwaitingRelease
	s.record(sig.Time, from, PhaseAwaitingRelease, sig.Trigger+" held")
}

func (s *Sequencer) cancelHold(at time.Time, to Phase) {
	s.held = nil
	s.state.Phase = to
	if to == PhaseScanning {
		s.state.DwellStart = at
		s.arm(at)
	}
	s.record(at, PhaseAwaitingRelease, to, "hold cancelled")
}

// commitActive commits the node on the active path.
func (s *Sequencer) commitActive(sig Signal) {
	node, ok := s.cat.Node(s.state.ActivePath)
	if !ok {
		s.stats.Ignored++
		return
	}
	s.enterCommitted(sig)
	if node.IsTarget() {
		s.commitTarget(node.Target, sig)
		return
	}
	s.descend(node.Group, sig)
}

func (s *Sequencer) commitDirect(t *catalog.Target, sig Signal) {
	s.enterCommitted(sig)
	s.state.ActivePath = t.Position()
	s.commitTarget(t, sig)
}

func (s *Sequencer) enterCommitted(sig Signal) {
	s.freeze()
	s.held = nil
	s.lastCommit = sig.Time
	s.hasCommitted = true
	from := s.state.Phase
	s.state.Phase = PhaseCommitted
	s.record(sig.Time, from, PhaseCommitted, sig.Trigger)
}

// descend starts scanning inside g. Levels with a single candidate are
// passed through, so a group holding one target commits that target.
func (s *Sequencer) descend(g *catalog.Group, sig Signal) {
	outer := append(slices.Clone(s.outer), s.state.CycleCount)
	for {
		slots := slotsOf(g)
		if len(slots) == 0 {
			s.restart(sig.Time, "empty group")
			return
		}
		if len(slots) > 1 {
			s.state.ActivePath = append(slices.Clone(g.Path), slots[0])
			break
		}
		if g.IsLeaf() {
			t := g.Targets[slots[0]]
			s.state.ActivePath = t.Position()
			s.commitTarget(t, sig)
			return
		}
		g = g.Children[slots[0]]
		outer = append(outer, 0)
	}

	s.stats.Descents++
	s.outer = outer
	s.state.CycleCount = 0
	s.state.Phase = PhaseScanning
	s.state.DwellStart = sig.Time
	s.arm(sig.Time)
	s.record(sig.Time, PhaseCommitted, PhaseScanning, "descend")
}

func (s *Sequencer) commitTarget(t *catalog.Target, sig Signal) {
	s.state.Serial++
	s.stats.Commits++
	c := Commit{
		Serial:  s.state.Serial,
		Target:  t,
		Trigger: sig.Trigger,
		Time:    sig.Time,
		Epoch:   s.state.Epoch,
	}
	s.logger.Debug("target committed", "target", t.ID, "serial", c.Serial, "trigger", c.Trigger)
	if s.onCommit != nil {
		s.onCommit(c)
	}

	if s.state.Mode == ModeScan && s.cfg.RestartAfterSelect {
		s.restart(sig.Time, "restart after select")
		return
	}
	s.state.Phase = PhaseIdle
	s.state.ActivePath = nil
	s.state.CycleCount = 0
	s.outer = nil
	s.record(sig.Time, PhaseCommitted, PhaseIdle, "selected")
}

// restart scans the root level from its first member.
func (s *Sequencer) restart(at time.Time, reason string) {
	from := s.state.Phase
	s.state.ActivePath = nil
	if slots := slotsOf(s.cat.Root()); len(slots) > 0 {
		s.state.ActivePath = []int{slots[0]}
	}
	s.state.CycleCount = 0
	s.outer = nil
	s.state.Phase = PhaseScanning
	s.state.DwellStart = at
	s.arm(at)
	s.record(at, from, PhaseScanning, reason)
}

func (s *Sequencer) arm(from time.Time) {
	s.state.Deadline = from.Add(s.cfg.Interval)
	s.timers.Schedule(scanTimerKey, s.state.Deadline, s.tick)
}

func (s *Sequencer) freeze() {
	s.timers.Cancel(scanTimerKey)
	s.state.Deadline = time.Time{}
}

func (s *Sequencer) tick(at time.Time) {
	if s.state.Phase != PhaseScanning || s.cat == nil {
		return
	}
	if s.now.Sub(at) > maxCatchUp*s.cfg.Interval {
		s.restart(s.now, "clock jump")
		return
	}
	s.stats.Ticks++
	s.advance(at)
	s.arm(at)
}

// advance moves to the next member of the current level. After the last
// member the pass count grows; once it reaches the level's cycle a nested
// level hands control back to its parent, whose own pass count resumes
// where it was, and the root starts over.
func (s *Sequencer) advance(at time.Time) {
	path := s.state.ActivePath
	if len(path) == 0 {
		return
	}
	levelPath := path[:len(path)-1]
	cur := path[len(path)-1]
	node, ok := s.cat.Node(levelPath)
	if !ok || node.Group == nil {
		return
	}
	g := node.Group
	slots := slotsOf(g)
	if len(slots) == 0 {
		return
	}

	s.state.DwellStart = at
	for _, i := range slots {
		if i > cur {
			s.state.ActivePath = append(slices.Clone(levelPath), i)
			return
		}
	}

	s.state.CycleCount++
	if s.state.CycleCount >= s.cycleOf(g) {
		s.state.CycleCount = 0
		if len(levelPath) > 0 {
			if n := len(s.outer); n > 0 {
				s.state.CycleCount = s.outer[n-1]
				s.outer = s.outer[:n-1]
			}
			s.stats.Ascents++
			s.state.ActivePath = slices.Clone(levelPath)
			s.record(at, PhaseScanning, PhaseScanning, "ascend")
			return
		}
	}
	s.stats.Wraps++
	s.state.ActivePath = append(slices.Clone(levelPath), slots[0])
}

// cycleOf returns the number of passes made over g. Config.RootCycle, when
// set, overrides the root group's own cycle.
func (s *Sequencer) cycleOf(g *catalog.Group) int {
	if len(g.Path) == 0 && s.cfg.RootCycle > 0 {
		return s.cfg.RootCycle
	}
	return max(g.Cycle, 1)
}

// slotsOf returns the indices of g's selectable members: its targets, or
// its child groups that contain at least one target.
func slotsOf(g *catalog.Group) []int {
	if g == nil {
		return nil
	}
	var out []int
	if g.IsLeaf() {
		for i := range g.Targets {
			out = append(out, i)
		}
		return out
	}
	for i, c := range g.Children {
		if c.Len() > 0 {
			out = append(out, i)
		}
	}
	return out
}

func (s *Sequencer) record(at time.Time, from, to Phase, reason string) {
	s.logger.Debug("scan transition", "from", from, "to", to, "path", s.state.ActivePath, "reason", reason)
	if s.cfg.HistorySize <= 0 {
		return
	}
	tr := Transition{Time: at, From: from, To: to, Path: slices.Clone(s.state.ActivePath), Reason: reason}
	if len(s.history) < s.cfg.HistorySize {
		s.history = append(s.history, tr)
		return
	}
	s.history[s.next] = tr
	s.next = (s.next + 1) % len(s.history)
}

// State returns a copy of the current state.
func (s *Sequencer) State() ScanState {
	return s.state.clone()
}

// Active returns the cued node.
func (s *Sequencer) Active() (catalog.Node, bool) {
	if s.cat == nil || len(s.state.ActivePath) == 0 {
		return catalog.Node{}, false
	}
	return s.cat.Node(s.state.ActivePath)
}

// History returns recorded transitions, oldest first.
func (s *Sequencer) History() []Transition {
	out := make([]Transition, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

// Stats returns the sequencer counters.
func (s *Sequencer) Stats() SequencerStats {
	return s.stats
}
