package term

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
)

// Input turns terminal events into raw access events. It implements
// access.Source.
type Input struct {
	screen tcell.Screen
	board  *Board
	clock  func() time.Time

	events   chan access.RawEvent
	quit     chan struct{}
	quitOnce sync.Once
	resized  func()

	// Pump state, owned by the Run goroutine.
	over    catalog.ElementID
	pressed catalog.ElementID
	down    bool
}

// InputOption configures an Input.
type InputOption func(*Input)

// WithInputClock sets the clock stamping events. Defaults to time.Now.
func WithInputClock(now func() time.Time) InputOption {
	return func(in *Input) {
		if now != nil {
			in.clock = now
		}
	}
}

// WithResize sets a function called after the screen is resized.
func WithResize(fn func()) InputOption {
	return func(in *Input) {
		in.resized = fn
	}
}

// NewInput creates an input pump reading screen and hit-testing board.
func NewInput(screen tcell.Screen, board *Board, opts ...InputOption) *Input {
	in := &Input{
		screen: screen,
		board:  board,
		clock:  time.Now,
		events: make(chan access.RawEvent, 64),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Events implements access.Source. The channel is closed when Run returns.
func (in *Input) Events() <-chan access.RawEvent {
	return in.events
}

// Quit is closed when the user asks to leave.
func (in *Input) Quit() <-chan struct{} {
	return in.quit
}

// Run polls the screen until it is finalized or ctx is done. PollEvent
// blocks, so callers stop Run by calling screen.Fini.
func (in *Input) Run(ctx context.Context) {
	defer close(in.events)
	for {
		ev := in.screen.PollEvent()
		if ev == nil {
			return
		}
		for _, raw := range in.Translate(ev) {
			select {
			case in.events <- raw:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Translate maps one terminal event to raw access events.
func (in *Input) Translate(ev tcell.Event) []access.RawEvent {
	switch ev := ev.(type) {
	case *tcell.EventMouse:
		return in.mouse(ev)
	case *tcell.EventKey:
		return in.key(ev)
	case *tcell.EventResize:
		in.screen.Sync()
		if in.board != nil {
			in.board.Resize()
		}
		if in.resized != nil {
			in.resized()
		}
	}
	return nil
}

func (in *Input) mouse(ev *tcell.EventMouse) []access.RawEvent {
	now := in.clock()
	x, y := ev.Position()
	var el catalog.ElementID
	if in.board != nil {
		el, _ = in.board.ElementAt(x, y)
	}

	var out []access.RawEvent
	emit := func(kind access.RawKind, e catalog.ElementID) {
		out = append(out, access.RawEvent{Kind: kind, Element: e, Time: now})
	}

	if el != in.over {
		if in.over != "" {
			emit(access.RawOut, in.over)
		}
		if el != "" {
			emit(access.RawOver, el)
		}
		in.over = el
	}

	buttons := ev.Buttons()
	left := buttons&tcell.Button1 != 0
	switch {
	case left && !in.down:
		in.down = true
		in.pressed = el
		if el != "" {
			emit(access.RawDown, el)
		}
	case !left && in.down:
		in.down = false
		if in.pressed != "" {
			emit(access.RawUp, in.pressed)
		}
		in.pressed = ""
	}
	if buttons&tcell.Button2 != 0 && el != "" {
		emit(access.RawContextMenu, el)
	}
	return out
}

// key maps space and enter to a switch press. Terminals report no key
// release, so the press is followed by an immediate release.
func (in *Input) key(ev *tcell.EventKey) []access.RawEvent {
	switch {
	case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
		ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
		in.quitOnce.Do(func() { close(in.quit) })
		return nil
	case ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
		now := in.clock()
		return []access.RawEvent{
			{Kind: access.RawSwitchDown, Time: now},
			{Kind: access.RawSwitchUp, Time: now},
		}
	}
	return nil
}
