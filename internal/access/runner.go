package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/scanboard/internal/catalog"
)

// Source delivers raw input. The channel is closed when input ends.
type Source interface {
	Events() <-chan RawEvent
}

// ChanSource adapts a channel to Source.
type ChanSource chan RawEvent

// Events implements Source.
func (c ChanSource) Events() <-chan RawEvent {
	return c
}

// RunOption configures a Runner.
type RunOption func(*Handle)

// WithClock sets the wall clock. Defaults to time.Now.
func WithClock(now func() time.Time) RunOption {
	return func(h *Handle) {
		if now != nil {
			h.clock = now
		}
	}
}

// WithStepHandler sets a function called on the runner goroutine with a
// fresh Snapshot after every processed input, timer or load.
func WithStepHandler(fn func(Snapshot)) RunOption {
	return func(h *Handle) {
		h.onStep = fn
	}
}

// WithEngineOptions passes options to the underlying Engine.
func WithEngineOptions(opts ...Option) RunOption {
	return func(h *Handle) {
		h.engineOpts = append(h.engineOpts, opts...)
	}
}

// WithRunnerLogger sets the logger for the runner and its engine.
func WithRunnerLogger(l *slog.Logger) RunOption {
	return func(h *Handle) {
		if l != nil {
			h.logger = l
		}
	}
}

type loadRequest struct {
	cat   *catalog.Catalogue
	cfg   Config
	reply chan error
}

// Handle is a running engine. The engine is owned by one goroutine that
// multiplexes input, the scan and dwell timers, and load requests.
type Handle struct {
	id         string
	src        Source
	clock      func() time.Time
	onStep     func(Snapshot)
	engineOpts []Option
	logger     *slog.Logger

	engine *Engine
	snap   atomic.Pointer[Snapshot]

	loads    chan loadRequest
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start creates an engine, loads cat when it is non-nil, and runs it on a
// new goroutine until ctx is cancelled or Stop is called. An invalid cfg
// degrades the engine to direct selection rather than failing.
func Start(ctx context.Context, src Source, cat *catalog.Catalogue, cfg Config, opts ...RunOption) (*Handle, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	h := &Handle{
		id:     uuid.NewString(),
		src:    src,
		clock:  time.Now,
		logger: slog.New(slog.DiscardHandler),
		loads:  make(chan loadRequest),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("runner", h.id)

	engineOpts := append([]Option{WithLogger(h.logger)}, h.engineOpts...)
	engineOpts = append(engineOpts, WithStart(h.clock()))
	h.engine = NewEngine(engineOpts...)

	if cat != nil {
		if err := h.engine.Load(cat, cfg); err != nil && !errors.Is(err, ErrDegraded) {
			return nil, err
		}
	}
	h.publish()

	go h.run(ctx)
	h.logger.Debug("access runner started")
	return h, nil
}

// Stop stops the runner started by Start and waits for its goroutine.
func Stop(h *Handle) {
	if h == nil {
		return
	}
	h.Stop()
}

// Stop stops the runner and waits for its goroutine. Every timer is
// cancelled before the catalogue is released.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// ID returns the runner's unique id.
func (h *Handle) ID() string {
	return h.id
}

// Done is closed when the runner goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Snapshot returns the state published after the most recent step.
func (h *Handle) Snapshot() Snapshot {
	return *h.snap.Load()
}

// Load replaces the catalogue and configuration on the runner goroutine.
func (h *Handle) Load(ctx context.Context, cat *catalog.Catalogue, cfg Config) error {
	req := loadRequest{cat: cat, cfg: cfg, reply: make(chan error, 1)}
	select {
	case h.loads <- req:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	events := h.src.Events()
	for {
		var timerC <-chan time.Time
		if next, ok := h.engine.NextDeadline(); ok {
			timer.Reset(max(next.Sub(h.clock()), 0))
			timerC = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.stop:
			h.shutdown()
			return
		case raw, ok := <-events:
			if !ok {
				events = nil
				h.logger.Debug("access source closed")
				continue
			}
			if raw.Time.IsZero() {
				raw.Time = h.clock()
			}
			h.engine.Handle(raw)
		case <-timerC:
			h.engine.Advance(h.clock())
		case req := <-h.loads:
			err := h.engine.Load(req.cat, req.cfg)
			h.publish()
			req.reply <- err
			continue
		}
		h.publish()
	}
}

func (h *Handle) shutdown() {
	h.engine.Close()
	h.publish()
	h.logger.Debug("access runner stopped", "stats", h.engine.Stats().Sequencer)
}

func (h *Handle) publish() {
	snap := h.engine.Snapshot()
	h.snap.Store(&snap)
	if h.onStep != nil {
		h.onStep(snap)
	}
}
