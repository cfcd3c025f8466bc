package access

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/schedule"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCapturer sets the platform pointer capture used by the Normalizer.
func WithCapturer(c Capturer) Option {
	return func(e *Engine) {
		e.capture = c
	}
}

// WithCommitHandler sets the function called for every committed target.
// It runs synchronously inside the engine and must not call back into it.
func WithCommitHandler(fn func(Commit)) Option {
	return func(e *Engine) {
		e.onCommit = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStart sets the initial clock.
func WithStart(t time.Time) Option {
	return func(e *Engine) {
		e.now = t
	}
}

// Stats aggregates the counters of every stage.
type Stats struct {
	Normalizer NormalizerStats
	Debouncer  DebouncerStats
	Sequencer  SequencerStats
	Timers     schedule.Stats

	// Clamped counts inputs whose timestamp was earlier than the clock.
	Clamped uint64
}

// Snapshot is an immutable view of the engine at one instant.
type Snapshot struct {
	Time      time.Time
	State     ScanState
	Config    Config
	Catalogue *catalog.Catalogue
	Hovers    []Hover
	Degraded  bool
}

// Engine composes the Normalizer, Debouncer and Sequencer on one logical
// clock. It is single-threaded: call it from one goroutine only.
type Engine struct {
	cfg      Config
	now      time.Time
	cat      *catalog.Catalogue
	degraded bool
	clamped  uint64

	timers     *schedule.Queue
	normalizer *Normalizer
	debouncer  *Debouncer
	sequencer  *Sequencer

	capture  Capturer
	onCommit func(Commit)
	logger   *slog.Logger
}

// NewEngine creates an engine with no catalogue loaded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		timers: schedule.New(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.normalizer = NewNormalizer(nil, e.capture)
	e.sequencer = NewSequencer(e.timers, e.commit, e.logger)
	e.debouncer = NewDebouncer(e.timers, e.cfg.Hold, e.hasTarget, e.sequencer.HandleEvent)
	return e
}

func (e *Engine) hasTarget(id catalog.TargetID) bool {
	return e.cat != nil && e.cat.Has(id)
}

func (e *Engine) commit(c Commit) {
	if e.onCommit != nil {
		e.onCommit(c)
	}
}

// Load atomically replaces the catalogue and configuration. Every pending
// timer of the previous catalogue is cancelled first and scanning restarts
// at the root. An invalid cfg does not prevent the load: the engine falls
// back to direct selection and returns an error wrapping ErrDegraded.
func (e *Engine) Load(cat *catalog.Catalogue, cfg Config) error {
	if cat == nil {
		return ErrNoCatalogue
	}

	var cfgErr error
	if err := cfg.Validate(); err != nil {
		cfgErr = fmt.Errorf("%w: %w", ErrDegraded, err)
		e.logger.Warn("access config rejected, scanning disabled", "err", err)
		cfg = cfg.degraded()
	}
	cfg.Triggers = slices.Clone(cfg.Triggers)

	e.debouncer.Reset()
	e.timers.CancelAll()

	e.cat = cat
	e.cfg = cfg
	e.degraded = cfgErr != nil
	e.normalizer.SetLookup(cat)
	e.debouncer.SetHold(cfg.Hold)
	if err := e.sequencer.Load(cat, cfg, e.now); err != nil {
		return err
	}

	e.logger.Info("catalogue loaded",
		"epoch", cat.Epoch(),
		"targets", cat.Len(),
		"mode", cfg.Mode,
		"interval", cfg.Interval,
		"hold", cfg.Hold,
	)
	return cfgErr
}

// LoadSpec builds a catalogue from spec and loads it. A spec that fails
// validation is rejected and the current catalogue stays active.
func (e *Engine) LoadSpec(spec catalog.Spec, cfg Config) error {
	cat, err := catalog.Build(spec)
	if err != nil {
		e.logger.Warn("catalogue rejected", "err", err)
		return err
	}
	return e.Load(cat, cfg)
}

// Handle advances the clock to raw.Time and processes the event.
func (e *Engine) Handle(raw RawEvent) Disposition {
	raw.Time = e.clamp(raw.Time)
	e.Advance(raw.Time)

	ev, disp := e.normalizer.Normalize(raw)
	if disp.Emitted {
		e.debouncer.Feed(ev)
	}
	return disp
}

// Switch feeds an external switch press or release at the given instant.
func (e *Engine) Switch(kind Kind, at time.Time) {
	raw := RawEvent{Kind: RawSwitchDown, Time: at}
	if kind == KindRelease {
		raw.Kind = RawSwitchUp
	}
	e.Handle(raw)
}

// Advance moves the clock to now and fires every timer due by then. Times
// earlier than the clock are ignored. It returns the number of timers fired.
func (e *Engine) Advance(now time.Time) int {
	if now.Before(e.now) {
		return 0
	}
	e.sequencer.SetNow(now)
	n := e.timers.Advance(now)
	e.now = now
	return n
}

func (e *Engine) clamp(t time.Time) time.Time {
	if t.IsZero() {
		return e.now
	}
	if t.Before(e.now) {
		e.clamped++
		return e.now
	}
	return t
}

// Close cancels every timer and releases the catalogue.
func (e *Engine) Close() {
	e.debouncer.Reset()
	e.timers.CancelAll()
	e.sequencer.Unload(e.now)
	e.normalizer.SetLookup(nil)
	e.cat = nil
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.now
}

// NextDeadline returns the earliest pending timer.
func (e *Engine) NextDeadline() (time.Time, bool) {
	return e.timers.Next()
}

// State returns a copy of the scan state.
func (e *Engine) State() ScanState {
	return e.sequencer.State()
}

// Active returns the cued node.
func (e *Engine) Active() (catalog.Node, bool) {
	return e.sequencer.Active()
}

// Catalogue returns the loaded catalogue, or nil.
func (e *Engine) Catalogue() *catalog.Catalogue {
	return e.cat
}

// Config returns the configuration in effect.
func (e *Engine) Config() Config {
	c := e.cfg
	c.Triggers = slices.Clone(c.Triggers)
	return c
}

// Degraded reports whether the last Load fell back to direct selection.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// Hovers returns targets whose hover has not settled yet.
func (e *Engine) Hovers() []Hover {
	return e.debouncer.Hovers()
}

// PendingDwells returns the number of armed dwell timers.
func (e *Engine) PendingDwells() int {
	return e.debouncer.Pending()
}

// History returns the recent scan transitions, oldest first.
func (e *Engine) History() []Transition {
	return e.sequencer.History()
}

// Snapshot returns an immutable view of the engine.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Time:      e.now,
		State:     e.State(),
		Config:    e.Config(),
		Catalogue: e.cat,
		Hovers:    e.Hovers(),
		Degraded:  e.degraded,
	}
}

// Stats returns the counters of every stage.
func (e *Engine) Stats() Stats {
	return Stats{
		Normalizer: e.normalizer.Stats(),
		Debouncer:  e.debouncer.Stats(),
		Sequencer:  e.sequencer.Stats(),
		Timers:     e.timers.Stats(),
		Clamped:    e.clamped,
	}
}
