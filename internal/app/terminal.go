package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/bridge"
	"github.com/dshills/scanboard/internal/event"
	"github.com/dshills/scanboard/internal/term"
)

// frameRate is how often the board is redrawn. Cue progress is computed
// from the frame time, so the rate only affects smoothness.
const frameRate = 30

// RunTerminal draws the board on screen and feeds terminal input to the
// engine until the user quits or ctx is cancelled.
func (app *Application) RunTerminal(ctx context.Context, screen tcell.Screen) error {
	if err := screen.Init(); err != nil {
		return &InitError{Component: "terminal", Err: err}
	}
	defer screen.Fini()
	screen.EnableMouse()
	screen.HideCursor()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	board := term.NewBoard(screen, app.Style(), app.Config().Board.Columns)
	board.SetCatalogue(app.Catalogue())
	board.SetStatus(app.status())

	input := term.NewInput(screen, board)
	go input.Run(ctx)

	if err := app.Start(ctx, input); err != nil {
		return err
	}
	defer app.Shutdown()

	subs := []*event.Subscription{}
	reloaded, err := app.bus.SubscribeFunc(event.TopicCatalogueLoaded, func(context.Context, any) error {
		board.SetStyle(app.Style())
		board.SetCatalogue(app.Catalogue())
		board.SetStatus(app.status())
		return nil
	}, event.WithPriority(event.PriorityCritical))
	if err == nil {
		subs = append(subs, reloaded)
	}
	selected, err := app.bus.Subscribe(event.TopicSelectionCommitted,
		event.AsHandlerFunc(func(_ context.Context, ev event.Event[bridge.Selection]) error {
			board.SetStatus(selectionStatus(ev.Payload))
			return nil
		}),
		event.WithDeliveryMode(event.DeliveryAsync),
		event.WithPriority(event.PriorityLow),
		event.WithFilter(app.currentBoard),
	)
	if err == nil {
		subs = append(subs, selected)
	}
	defer func() {
		for _, s := range subs {
			_ = app.bus.Unsubscribe(s)
		}
	}()

	h := app.Handle()
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-input.Quit():
			return nil
		case <-h.Done():
			return nil
		case now := <-ticker.C:
			board.Draw(h.Snapshot(), now)
		}
	}
}

// status describes the board on the bottom line.
func (app *Application) status() string {
	cfg := app.AccessConfig()
	mode := cfg.Mode.String()
	if cfg.Validate() != nil {
		mode = access.ModeDirect.String() + " (degraded)"
	}
	return fmt.Sprintf(" %d targets  %s  cue %s  space: switch  q: quit",
		app.Catalogue().Len(), mode, app.Style().Key)
}

// currentBoard accepts selections made on the loaded catalogue.
func (app *Application) currentBoard(ev any) bool {
	e, ok := ev.(event.Event[bridge.Selection])
	return ok && e.Payload.Epoch == app.Catalogue().Epoch()
}

func selectionStatus(sel bridge.Selection) string {
	label := sel.Label
	if label == "" {
		label = string(sel.Target)
	}
	return fmt.Sprintf(" selected %s (%s by %s)  q: quit", label, sel.Action, sel.Trigger)
}
