package cue

import (
	"fmt"
	"slices"
)

// List is a set of cue styles keyed by Key.
type List struct {
	styles map[string]Style
	keys   []string
}

// NewList validates styles and indexes them by key, keeping their order.
func NewList(styles ...Style) (*List, error) {
	l := &List{styles: make(map[string]Style, len(styles))}
	for _, s := range styles {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := l.styles[s.Key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, s.Key)
		}
		if s.Kind == KindFill && s.Direction == "" {
			s.Direction = FillUp
		}
		l.styles[s.Key] = s
		l.keys = append(l.keys, s.Key)
	}
	return l, nil
}

// DefaultList returns the built-in cue styles.
func DefaultList() *List {
	l, err := NewList(DefaultStyles()...)
	if err != nil {
		panic(err)
	}
	return l
}

// DefaultStyles returns the built-in styles.
func DefaultStyles() []Style {
	return []Style{
		{Key: "none", Name: "no cue", Kind: KindNone},
		{Key: "overlay", Name: "yellow overlay", Kind: KindOverlay, Color: "yellow", Opacity: 0.3},
		{Key: "fill", Name: "blue fill", Kind: KindFill, Color: "blue", Opacity: 0.3, Direction: FillUp},
		{Key: "circle", Name: "light blue circle", Kind: KindCircle, Color: "lightblue", Opacity: 0.3},
	}
}

// Get returns the style for key.
func (l *List) Get(key string) (Style, bool) {
	s, ok := l.styles[key]
	return s, ok
}

// Select returns the style for key, or an error wrapping ErrUnknownCueKey.
func (l *List) Select(key string) (Style, error) {
	s, ok := l.styles[key]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrUnknownCueKey, key)
	}
	return s, nil
}

// Keys returns the style keys in declaration order.
func (l *List) Keys() []string {
	return slices.Clone(l.keys)
}

// Names maps each key to its display name.
func (l *List) Names() map[string]string {
	out := make(map[string]string, len(l.styles))
	for k, s := range l.styles {
		out[k] = s.Name
	}
	return out
}
