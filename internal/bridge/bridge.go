package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/event"
)

// GesturePress is the gesture reported for every selection.
const GesturePress = "press"

// ErrDispatchPanic is matched by the error recorded when a dispatcher panics.
var ErrDispatchPanic = errors.New("dispatcher panicked")

// Dispatcher resolves an action name to its effect.
type Dispatcher interface {
	ApplyRules(name, gesture string, data map[string]any) error
}

// DispatcherFunc is a function adapter for Dispatcher.
type DispatcherFunc func(name, gesture string, data map[string]any) error

// ApplyRules implements Dispatcher.
func (f DispatcherFunc) ApplyRules(name, gesture string, data map[string]any) error {
	return f(name, gesture, data)
}

// Selection is one committed target as seen by the outside world.
type Selection struct {
	Serial  uint64
	Target  catalog.TargetID
	Label   string
	Action  string
	Data    map[string]any
	Gesture string
	Trigger string
	Time    time.Time
	Epoch   uint64
}

// Stats counts what the bridge has done.
type Stats struct {
	Dispatched uint64
	Clicked    uint64
	Duplicates uint64
	Failures   uint64
	Panics     uint64
	PerAction  map[string]uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBus publishes every selection on bus under event.TopicSelectionCommitted
// and every failure under event.TopicDispatchFailed. Both events of one
// commit share the correlation ID returned by CorrelationID.
func WithBus(bus *event.Bus) Option {
	return func(b *Bridge) {
		b.bus = bus
	}
}

// route sends commits from catalogue epoch onward to d.
type route struct {
	epoch uint64
	d     Dispatcher
}

// Bridge dispatches commits exactly once per serial.
type Bridge struct {
	mu     sync.Mutex
	routes []route // ascending epochs
	logger *slog.Logger
	bus    *event.Bus

	last  uint64
	seen  bool
	prev  Selection
	stats Stats
}

// New creates a Bridge. A nil dispatcher is allowed; selections without an
// OnClick override are then only published.
func New(d Dispatcher, opts ...Option) *Bridge {
	b := &Bridge{
		routes: []route{{d: d}},
		logger: slog.New(slog.DiscardHandler),
		stats:  Stats{PerAction: make(map[string]uint64)},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stage routes commits from catalogue epoch onward to d, while commits from
// earlier catalogues keep their dispatcher. Call it before the engine loads
// that catalogue, then Activate or Unstage once the load has settled.
func (b *Bridge) Stage(epoch uint64, d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := len(b.routes)
	for i > 1 && b.routes[i-1].epoch >= epoch {
		i--
	}
	b.routes = append(b.routes[:i], route{epoch: epoch, d: d})
}

// Activate drops the dispatchers of catalogues older than epoch. The engine
// must no longer produce commits for them.
func (b *Bridge) Activate(epoch uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.routeFor(epoch)
	b.routes = slices.Clone(b.routes[i:])
}

// Unstage removes the dispatcher staged for epoch.
func (b *Bridge) Unstage(epoch uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.routes) - 1; i > 0; i-- {
		if b.routes[i].epoch == epoch {
			b.routes = slices.Delete(b.routes, i, i+1)
		}
	}
}

// routeFor returns the index of the route serving epoch.
func (b *Bridge) routeFor(epoch uint64) int {
	for i := len(b.routes) - 1; i > 0; i-- {
		if b.routes[i].epoch <= epoch {
			return i
		}
	}
	return 0
}

// Commit dispatches c. Serials are increasing for one engine, so a serial at
// or below the last one seen is a repeat and is ignored. Commit has the
// signature expected by access.WithCommitHandler.
func (b *Bridge) Commit(c access.Commit) {
	if c.Target == nil {
		return
	}

	b.mu.Lock()
	if b.seen && c.Serial <= b.last {
		b.stats.Duplicates++
		b.mu.Unlock()
		b.logger.Debug("duplicate commit ignored", "serial", c.Serial, "target", c.Target.ID)
		return
	}
	b.seen = true
	b.last = c.Serial
	d := b.routes[b.routeFor(c.Epoch)].d
	b.mu.Unlock()

	sel := selectionOf(c)
	err := b.dispatch(d, c.Target, sel)

	b.mu.Lock()
	b.prev = sel
	if c.Target.OnClick != nil {
		b.stats.Clicked++
	} else {
		b.stats.Dispatched++
	}
	b.stats.PerAction[sel.Action]++
	if err != nil {
		b.stats.Failures++
		if errors.Is(err, ErrDispatchPanic) {
			b.stats.Panics++
		}
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("dispatch failed", "target", sel.Target, "action", sel.Action, "err", err)
	} else {
		b.logger.Info("selection", "target", sel.Target, "action", sel.Action, "trigger", sel.Trigger, "serial", sel.Serial)
	}
	b.publish(sel, err)
}

// Last returns the most recent selection.
func (b *Bridge) Last() (Selection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prev, b.seen
}

// Stats returns a copy of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.PerAction = maps.Clone(b.stats.PerAction)
	return s
}

func selectionOf(c access.Commit) Selection {
	t := c.Target
	name := t.Action.Name
	if name == "" {
		name = string(t.ID)
	}
	return Selection{
		Serial:  c.Serial,
		Target:  t.ID,
		Label:   t.Label,
		Action:  name,
		Data:    maps.Clone(t.Action.Data),
		Gesture: GesturePress,
		Trigger: c.Trigger,
		Time:    c.Time,
		Epoch:   c.Epoch,
	}
}

// dispatch runs the OnClick override or the dispatcher with panic recovery.
func (b *Bridge) dispatch(d Dispatcher, t *catalog.Target, sel Selection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			err = fmt.Errorf("%w for %s: %v\n%s", ErrDispatchPanic, sel.Action, r, stack[:n])
		}
	}()

	if t.OnClick != nil {
		t.OnClick()
		return nil
	}
	if d == nil {
		return nil
	}
	return d.ApplyRules(sel.Action, sel.Gesture, sel.Data)
}

// CorrelationID names one commit: the catalogue epoch and serial.
func CorrelationID(sel Selection) string {
	return fmt.Sprintf("%d/%d", sel.Epoch, sel.Serial)
}

func (b *Bridge) publish(sel Selection, dispatchErr error) {
	if b.bus == nil {
		return
	}
	ctx := context.Background()
	id := CorrelationID(sel)
	ev := event.NewEventAt(event.TopicSelectionCommitted, sel, "bridge", sel.Time).WithCorrelation(id)
	if err := b.bus.Publish(ctx, ev); err != nil {
		b.logger.Debug("selection not published", "err", err)
	}
	if dispatchErr != nil {
		failed := event.NewEventAt(event.TopicDispatchFailed, dispatchErr, "bridge", sel.Time).WithCorrelation(id)
		_ = b.bus.Publish(ctx, failed)
	}
}
