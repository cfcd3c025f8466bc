package app

import (
	"context"
	"errors"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/config"
	"github.com/dshills/scanboard/internal/event"
	"github.com/dshills/scanboard/internal/logging"
)

// watch reloads the board whenever one of its files changes.
func (app *Application) watch(ctx context.Context) error {
	w, err := config.NewWatcher(func(path string) {
		if err := app.Reload(ctx); err != nil {
			app.logger.Error("reload failed", "changed", path, "error", err)
		}
	}, config.WithWatcherLogger(logging.Component(app.logger, "watcher")))
	if err != nil {
		return err
	}

	cfg := app.Config()
	for _, p := range []string{app.opts.ConfigPath, cfg.Board.Catalogue, cfg.Board.Rules} {
		if p == "" {
			continue
		}
		if err := w.Add(p); err != nil {
			_ = w.Close()
			return err
		}
	}

	app.mu.Lock()
	app.watcher = w
	app.mu.Unlock()
	return nil
}

// Reload re-reads the configuration, board and rules and loads them into
// the running engine. Any failure leaves the previous board active.
func (app *Application) Reload(ctx context.Context) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return &ReloadError{Path: app.opts.ConfigPath, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		app.logger.Warn("invalid configuration", "path", cfg.Path, "error", err)
	}
	if app.opts.Logger == nil {
		if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			app.level.Set(level)
		}
	}

	ac := app.engineConfig(cfg)
	style := app.cueStyle(cfg)

	cat, err := app.loadCatalogue(cfg)
	if err != nil {
		return &ReloadError{Path: cfg.Board.Catalogue, Err: err}
	}
	disp, err := app.loadRules(cfg)
	if err != nil {
		return &ReloadError{Path: cfg.Board.Rules, Err: err}
	}

	// Commits for the new board use the new rules as soon as the engine
	// loads it; commits already in flight keep the old ones.
	epoch := cat.Epoch()
	app.bridge.Stage(epoch, dispatcherOf(disp))
	if h := app.Handle(); h != nil {
		if err := h.Load(ctx, cat, ac); err != nil && !errors.Is(err, access.ErrDegraded) {
			app.bridge.Unstage(epoch)
			if disp != nil {
				disp.Close()
			}
			return &ReloadError{Path: cfg.Board.Catalogue, Err: err}
		}
	}

	app.mu.Lock()
	old := app.rules
	app.config = cfg
	app.catalog = cat
	app.access = ac
	app.style = style
	app.rules = disp
	app.mu.Unlock()

	app.bridge.Activate(epoch)
	if old != nil {
		old.Close()
	}

	app.logger.Info("board reloaded", "catalogue", cfg.Board.Catalogue, "targets", cat.Len(), "epoch", cat.Epoch())
	app.publish(ctx, event.NewEvent(event.TopicConfigReloaded, ac, "app"))
	app.publish(ctx, event.NewEvent(event.TopicCatalogueLoaded, cat.Summary(), "app"))
	return nil
}

func (app *Application) publish(ctx context.Context, ev any) {
	if err := app.bus.Publish(ctx, ev); err != nil {
		app.logger.Debug("event dropped", "error", err)
	}
}
