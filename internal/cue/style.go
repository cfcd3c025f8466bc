package cue

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Errors returned by style validation.
var (
	ErrUnknownKind   = errors.New("unknown cue kind")
	ErrInvalidColor  = errors.New("invalid cue color")
	ErrDuplicateKey  = errors.New("duplicate cue key")
	ErrEmptyKey      = errors.New("cue key cannot be empty")
	ErrUnknownCueKey = errors.New("unknown cue key")
)

// Kind selects how a cue is drawn.
type Kind string

const (
	KindNone    Kind = "none"
	KindOverlay Kind = "overlay"
	KindFill    Kind = "fill"
	KindCircle  Kind = "circle"
	KindCSS     Kind = "css"
)

// Direction is the edge a fill cue grows from.
type Direction string

const (
	FillUp          Direction = "up"
	FillDown        Direction = "down"
	FillLeftToRight Direction = "right"
	FillRightToLeft Direction = "left"
)

// Style is one named cue rendering.
type Style struct {
	Key     string
	Name    string
	Kind    Kind
	Color   string
	Opacity float64

	// Direction and Repeat apply to fill cues.
	Direction Direction
	Repeat    bool

	// CSS is passed through to web renderers for KindCSS.
	CSS string
}

// Validate checks the style's kind, colour and opacity.
func (s Style) Validate() error {
	if s.Key == "" {
		return ErrEmptyKey
	}
	switch s.Kind {
	case KindNone, KindCSS:
		return nil
	case KindOverlay, KindCircle:
	case KindFill:
		switch s.Direction {
		case "", FillUp, FillDown, FillLeftToRight, FillRightToLeft:
		default:
			return fmt.Errorf("cue %q: unknown fill direction %q", s.Key, s.Direction)
		}
	default:
		return fmt.Errorf("%w %q in cue %q", ErrUnknownKind, s.Kind, s.Key)
	}
	if _, err := ParseColor(s.Color); err != nil {
		return fmt.Errorf("cue %q: %w", s.Key, err)
	}
	if s.Opacity < 0 || s.Opacity > 1 || math.IsNaN(s.Opacity) {
		return fmt.Errorf("cue %q: opacity %v outside [0, 1]", s.Key, s.Opacity)
	}
	return nil
}

// Coverage returns the fraction of the cued element the style paints.
func (s Style) Coverage(d Descriptor) float64 {
	if !d.Active {
		return 0
	}
	switch s.Kind {
	case KindOverlay, KindCSS:
		return 1
	case KindFill, KindCircle:
		return d.Progress
	default:
		return 0
	}
}

// Tint blends bg towards the style colour by the style's opacity. It
// returns bg unchanged for styles that paint nothing.
func (s Style) Tint(bg colorful.Color, d Descriptor) colorful.Color {
	if s.Kind == KindNone || s.Kind == KindCSS || !d.Active {
		return bg
	}
	c, err := ParseColor(s.Color)
	if err != nil {
		return bg
	}
	return bg.BlendLab(c, s.Opacity).Clamped()
}

// ParseColor parses "#rrggbb", "#rgb" or a W3C colour name.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return colorful.Color{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(expandShortHex(s))
		if err != nil {
			return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		return c, nil
	}
	tc := tcell.GetColor(strings.ToLower(s))
	if tc == tcell.ColorDefault {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	r, g, b := tc.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}, nil
}

func expandShortHex(s string) string {
	if len(s) != 4 {
		return s
	}
	return string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
}

// TermColor converts c to a terminal colour.
func TermColor(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
