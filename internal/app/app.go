// Package app wires the access engine to its configuration, logging, event
// bus, rule dispatcher and terminal board, and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/bridge"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/config"
	"github.com/dshills/scanboard/internal/cue"
	"github.com/dshills/scanboard/internal/event"
	"github.com/dshills/scanboard/internal/logging"
	"github.com/dshills/scanboard/internal/rules"
)

// busQueueSize bounds the events waiting for asynchronous subscribers such
// as the terminal status line.
const busQueueSize = 256

// Options configures the application. Paths given here override the
// configuration file.
type Options struct {
	// ConfigPath is the TOML configuration file. It may be empty.
	ConfigPath string

	// BoardPath is the YAML board catalogue.
	BoardPath string

	// RulesPath is the Lua rule script. Without one, selections of targets
	// with no onClick are logged and dropped.
	RulesPath string

	// LogLevel overrides the configured level.
	LogLevel string

	// Logger replaces the configured logger. Tests use it.
	Logger *slog.Logger

	// Watch reloads the board when the configuration, board or rule files
	// change.
	Watch bool

	// Interactive suppresses the stderr log stream, which would draw over
	// the terminal board. A configured log file or the journal still work.
	Interactive bool
}

// Application coordinates the access engine and its collaborators.
type Application struct {
	mu sync.RWMutex

	opts     Options
	logger   *slog.Logger
	level    *slog.LevelVar
	logClose io.Closer

	bus     *event.Bus
	config  *config.Config
	cues    *cue.List
	style   cue.Style
	catalog *catalog.Catalogue
	access  access.Config
	rules   *rules.LuaDispatcher
	bridge  *bridge.Bridge

	handle  *access.Handle
	watcher *config.Watcher

	// lastCue is only touched by the runner goroutine.
	lastCue []cue.Descriptor

	running atomic.Bool
}

// New loads the configuration, board and rules and starts the event bus.
// An invalid access configuration is logged and the engine degrades to
// direct selection; a missing or malformed board is an error.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		cues: cue.DefaultList(),
	}
	if err := app.bootstrap(); err != nil {
		app.closeLog()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg, err := app.loadConfig()
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg

	// 2. Logging
	if err := app.setupLogging(); err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		app.logger.Warn("invalid configuration", "path", cfg.Path, "error", err)
	}

	// 3. Event bus
	app.bus = event.NewBus(
		event.WithLogger(logging.Component(app.logger, "bus")),
		event.WithPanicHandler(event.LogPanics(app.logger)),
		event.WithQueueSize(busQueueSize),
	)
	if err := app.bus.Start(); err != nil {
		return &InitError{Component: "event bus", Err: err}
	}

	// 4. Access settings and cue style
	app.access = app.engineConfig(cfg)
	app.style = app.cueStyle(cfg)

	// 5. Catalogue
	cat, err := app.loadCatalogue(cfg)
	if err != nil {
		return &InitError{Component: "catalogue", Err: err}
	}
	app.catalog = cat

	// 6. Rules and bridge
	disp, err := app.loadRules(cfg)
	if err != nil {
		return &InitError{Component: "rules", Err: err}
	}
	app.rules = disp
	app.bridge = bridge.New(dispatcherOf(disp),
		bridge.WithLogger(logging.Component(app.logger, "bridge")),
		bridge.WithBus(app.bus),
	)

	app.logger.Info("board loaded",
		"catalogue", cfg.Board.Catalogue,
		"targets", cat.Len(),
		"epoch", cat.Epoch(),
		"access", app.access.String(),
		"cue", app.style.Key,
	)
	return nil
}

// loadConfig reads the configuration and applies the command-line overrides.
func (app *Application) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.opts.BoardPath != "" {
		cfg.Board.Catalogue = app.opts.BoardPath
	}
	if app.opts.RulesPath != "" {
		cfg.Board.Rules = app.opts.RulesPath
	}
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = app.opts.LogLevel
	}
	return cfg, nil
}

func (app *Application) setupLogging() error {
	if app.opts.Logger != nil {
		app.logger = app.opts.Logger
		app.level = new(slog.LevelVar)
		return nil
	}
	level, err := logging.ParseLevel(app.config.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	lopts := logging.Options{
		Level:   level,
		Format:  app.config.Logging.Format,
		Journal: app.config.Logging.Journal,
	}
	if app.opts.Interactive && app.config.Logging.File == "" {
		l := logging.New(lopts)
		app.logger, app.level = l.Logger, l.Level()
		return nil
	}
	l, closer, err := logging.Open(app.config.Logging.File, lopts)
	if err != nil {
		return err
	}
	app.logger = l.Logger
	app.level = l.Level()
	app.logClose = closer
	return nil
}

// engineConfig converts the access section. Bad values are logged; the
// engine itself degrades to direct mode when it rejects the result.
func (app *Application) engineConfig(cfg *config.Config) access.Config {
	ac, err := cfg.Access.Engine()
	if err != nil {
		app.logger.Warn("access configuration degraded to direct selection", "error", err)
	}
	return ac
}

// cueStyle resolves the configured cue, falling back to the default overlay.
func (app *Application) cueStyle(cfg *config.Config) cue.Style {
	s, err := cfg.Cue.Resolve(app.cues)
	if err != nil {
		app.logger.Warn("invalid cue style, using overlay", "style", cfg.Cue.Style, "error", err)
		s, _ = app.cues.Get("overlay")
	}
	return s
}

func (app *Application) loadCatalogue(cfg *config.Config) (*catalog.Catalogue, error) {
	if cfg.Board.Catalogue == "" {
		return nil, ErrNoCatalogue
	}
	return catalog.Load(cfg.Board.Catalogue)
}

// loadRules opens the rule script. No script yields a nil dispatcher.
func (app *Application) loadRules(cfg *config.Config) (*rules.LuaDispatcher, error) {
	if cfg.Board.Rules == "" {
		return nil, nil
	}
	return rules.LoadFile(cfg.Board.Rules,
		rules.WithLogger(logging.Component(app.logger, "rules")),
		rules.WithEmitter(app.emit),
	)
}

// dispatcherOf avoids storing a typed nil in the bridge's interface.
func dispatcherOf(d *rules.LuaDispatcher) bridge.Dispatcher {
	if d == nil {
		return nil
	}
	return d
}

// emit forwards board.emit calls from rule scripts to the bus.
func (app *Application) emit(e rules.Emission) {
	ev := event.NewEvent(event.TopicRuleEmitted, e, "rules")
	if err := app.bus.Publish(context.Background(), ev); err != nil {
		app.logger.Debug("rule emission dropped", "rule", e.Rule, "kind", e.Kind, "error", err)
	}
}

// Start runs the access engine on src. The board keeps running until ctx
// is cancelled or Shutdown is called.
func (app *Application) Start(ctx context.Context, src access.Source, opts ...access.RunOption) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	app.mu.RLock()
	cat, cfg := app.catalog, app.access
	app.mu.RUnlock()

	runOpts := []access.RunOption{
		access.WithRunnerLogger(logging.Component(app.logger, "access")),
		access.WithStepHandler(app.step),
		access.WithEngineOptions(access.WithCommitHandler(app.bridge.Commit)),
	}
	runOpts = append(runOpts, opts...)

	h, err := access.Start(ctx, src, cat, cfg, runOpts...)
	if err != nil {
		app.running.Store(false)
		return &InitError{Component: "access runner", Err: err}
	}
	app.mu.Lock()
	app.handle = h
	app.mu.Unlock()

	if app.opts.Watch {
		if err := app.watch(ctx); err != nil {
			app.logger.Warn("live reload disabled", "error", err)
		}
	}
	return nil
}

// step publishes the cue whenever the cued nodes change.
func (app *Application) step(snap access.Snapshot) {
	cues := cue.ComputeAll(snap, snap.Time)
	if sameNodes(cues, app.lastCue) {
		return
	}
	app.lastCue = cues
	ev := event.NewEventAt(event.TopicCueChanged, cues, "access", snap.Time)
	if err := app.bus.Publish(context.Background(), ev); err != nil {
		app.logger.Debug("cue event dropped", "error", err)
	}
}

// sameNodes compares cue lists ignoring progress.
func sameNodes(a, b []cue.Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		x.Progress, y.Progress = 0, 0
		if !x.Equal(y) {
			return false
		}
	}
	return true
}

// Shutdown stops the runner, the watcher, the bus and the rule state, in
// that order.
func (app *Application) Shutdown() {
	app.mu.Lock()
	h, w := app.handle, app.watcher
	app.handle, app.watcher = nil, nil
	app.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}
	if h != nil {
		h.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if app.bus != nil {
		if err := app.bus.Stop(ctx); err != nil && !errors.Is(err, event.ErrBusNotRunning) {
			app.logger.Warn("event bus stop", "error", err)
		}
	}

	app.mu.Lock()
	if app.rules != nil {
		app.rules.Close()
		app.rules = nil
	}
	app.mu.Unlock()

	app.running.Store(false)
	app.closeLog()
}

func (app *Application) closeLog() {
	if app.logClose != nil {
		_ = app.logClose.Close()
		app.logClose = nil
	}
}

// IsRunning reports whether Start has been called without Shutdown.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// EventBus returns the event bus.
func (app *Application) EventBus() *event.Bus {
	return app.bus
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Catalogue returns the current catalogue.
func (app *Application) Catalogue() *catalog.Catalogue {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.catalog
}

// AccessConfig returns the engine configuration.
func (app *Application) AccessConfig() access.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.access
}

// Style returns the cue style.
func (app *Application) Style() cue.Style {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.style
}

// Bridge returns the dispatch bridge.
func (app *Application) Bridge() *bridge.Bridge {
	return app.bridge
}

// Handle returns the running engine, or nil before Start.
func (app *Application) Handle() *access.Handle {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.handle
}
