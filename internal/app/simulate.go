package app

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/bridge"
	"github.com/dshills/scanboard/internal/event"
	"github.com/dshills/scanboard/internal/logging"
	"github.com/dshills/scanboard/internal/rules"
	"github.com/dshills/scanboard/internal/trace"
)

// Simulate replays steps on a private engine whose clock is the trace's
// logical time, and writes every selection to w as a JSON line. It returns
// the number of selections written. The replay has its own bus and rule
// state, so nothing reaches the running board, if any, and concurrent
// replays do not see each other.
func (app *Application) Simulate(steps []trace.Step, start time.Time, tail time.Duration, w io.Writer) (int, error) {
	app.mu.RLock()
	cat, ac, cfg := app.catalog, app.access, app.config
	app.mu.RUnlock()

	logger := logging.Component(app.logger, "simulate")
	bus := event.NewBus(
		event.WithLogger(logger),
		event.WithPanicHandler(event.LogPanics(logger)),
	)
	if err := bus.Start(); err != nil {
		return 0, err
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	rec := trace.NewRecorder(w, start)
	if _, err := bus.Subscribe(event.TopicSelectionCommitted, rec.Handler()); err != nil {
		return 0, err
	}

	var emitted atomic.Int64
	var disp *rules.LuaDispatcher
	if cfg.Board.Rules != "" {
		var err error
		disp, err = rules.LoadFile(cfg.Board.Rules,
			rules.WithLogger(logger),
			rules.WithEmitter(func(e rules.Emission) {
				emitted.Add(1)
				_ = bus.Publish(context.Background(), event.NewEvent(event.TopicRuleEmitted, e, "rules"))
			}),
		)
		if err != nil {
			return 0, err
		}
		defer disp.Close()
	}

	b := bridge.New(dispatcherOf(disp), bridge.WithLogger(logger), bridge.WithBus(bus))
	eng := access.NewEngine(
		access.WithStart(start),
		access.WithLogger(logger),
		access.WithCommitHandler(b.Commit),
	)
	defer eng.Close()

	if err := eng.Load(cat, ac); err != nil && !errors.Is(err, access.ErrDegraded) {
		return 0, err
	}
	trace.Replay(eng, steps, start, tail)

	st := b.Stats()
	logger.Info("trace replayed",
		"steps", len(steps),
		"selections", rec.Count(),
		"emissions", emitted.Load(),
		"failures", st.Failures,
		"degraded", eng.Degraded(),
	)
	return rec.Count(), nil
}
