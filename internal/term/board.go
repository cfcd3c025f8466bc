package term

import (
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/cue"
)

// Box colours.
var (
	BoxBackground = colorful.Color{R: 0.18, G: 0.18, B: 0.2}
	BoxForeground = tcell.ColorWhite
)

// Board draws a catalogue as a grid of boxes. It is safe for concurrent use:
// the input pump hit-tests while the UI goroutine draws.
type Board struct {
	mu      sync.Mutex
	screen  tcell.Screen
	style   cue.Style
	columns int
	cat     *catalog.Catalogue
	boxes   []Box
	status  string
}

// NewBoard creates a board drawing on screen with the given cue style.
func NewBoard(screen tcell.Screen, style cue.Style, columns int) *Board {
	if columns <= 0 {
		columns = 1
	}
	return &Board{
		screen:  screen,
		style:   style,
		columns: columns,
	}
}

// SetCatalogue replaces the catalogue and recomputes the layout.
func (b *Board) SetCatalogue(cat *catalog.Catalogue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cat = cat
	b.relayout()
}

// SetStyle replaces the cue style.
func (b *Board) SetStyle(style cue.Style) {
	b.mu.Lock()
	b.style = style
	b.mu.Unlock()
}

// SetStatus sets the text of the bottom line.
func (b *Board) SetStatus(s string) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// Resize recomputes the layout for the current screen size.
func (b *Board) Resize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relayout()
}

// relayout must be called with mu held. The last row is the status line.
func (b *Board) relayout() {
	w, h := b.screen.Size()
	b.boxes = Layout(b.cat, w, h-1, b.columns)
}

// Boxes returns the current layout.
func (b *Board) Boxes() []Box {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Box, len(b.boxes))
	copy(out, b.boxes)
	return out
}

// ElementAt returns the element of the target drawn at (x, y).
func (b *Board) ElementAt(x, y int) (catalog.ElementID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	box, ok := HitTest(b.boxes, x, y)
	if !ok {
		return "", false
	}
	return box.Target.Element, true
}

// Draw paints snap at instant now and shows the screen.
func (b *Board) Draw(snap access.Snapshot, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.screen.Clear()
	cues := cue.ComputeAll(snap, now)
	for _, box := range b.boxes {
		b.drawBox(box, cues)
	}
	b.drawStatus()
	b.screen.Show()
}

func (b *Board) drawBox(box Box, cues []cue.Descriptor) {
	base := tcell.StyleDefault.Foreground(BoxForeground).Background(cue.TermColor(BoxBackground))

	type paint struct {
		cover float64
		style tcell.Style
	}
	var paints []paint
	for _, d := range cues {
		if !d.Covers(box.Target) {
			continue
		}
		cover := b.style.Coverage(d)
		if cover <= 0 {
			continue
		}
		bg := cue.TermColor(b.style.Tint(BoxBackground, d))
		paints = append(paints, paint{cover: cover, style: base.Background(bg)})
	}

	text := box.Target.Label
	if text == "" {
		text = string(box.Target.ID)
	}
	labelY := box.Y + box.H/2
	label := Truncate(text, box.W)
	labelX := box.X + (box.W-uniseg.StringWidth(label))/2

	for dy := range box.H {
		for dx := range box.W {
			st := base
			for _, p := range paints {
				if b.painted(dx, dy, box.W, box.H, p.cover) {
					st = p.style
				}
			}
			b.screen.SetContent(box.X+dx, box.Y+dy, ' ', nil, st)
		}
	}

	// The label takes the background of the cells it is written over.
	b.putString(labelX, labelY, label, func(x int) tcell.Style {
		_, _, st, _ := b.screen.GetContent(x, labelY)
		return st.Bold(true)
	})
}

// putString writes s at (x, y) one grapheme cluster at a time and returns
// the column after it.
func (b *Board) putString(x, y int, s string, style func(x int) tcell.Style) int {
	state := -1
	for len(s) > 0 {
		var cluster string
		var w int
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		runes := []rune(cluster)
		b.screen.SetContent(x, y, runes[0], runes[1:], style(x))
		x += w
	}
	return x
}

// painted reports whether the cell (dx, dy) of a w by h box is covered.
func (b *Board) painted(dx, dy, w, h int, cover float64) bool {
	switch b.style.Kind {
	case cue.KindFill:
		switch b.style.Direction {
		case cue.FillDown:
			return dy < scaled(cover, h)
		case cue.FillLeftToRight:
			return dx < scaled(cover, w)
		case cue.FillRightToLeft:
			return dx >= w-scaled(cover, w)
		default:
			return dy >= h-scaled(cover, h)
		}
	case cue.KindCircle:
		ex := (float64(dx)+0.5)/float64(w)*2 - 1
		ey := (float64(dy)+0.5)/float64(h)*2 - 1
		return math.Hypot(ex, ey) <= cover*math.Sqrt2
	default:
		return cover >= 1
	}
}

func scaled(cover float64, n int) int {
	return int(math.Round(cover * float64(n)))
}

func (b *Board) drawStatus() {
	w, h := b.screen.Size()
	if h <= 0 {
		return
	}
	st := tcell.StyleDefault.Reverse(true)
	x := b.putString(0, h-1, Truncate(b.status, w), func(int) tcell.Style { return st })
	for ; x < w; x++ {
		b.screen.SetContent(x, h-1, ' ', nil, st)
	}
}
