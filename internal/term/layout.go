package term

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/scanboard/internal/catalog"
)

// Box is the screen rectangle of one target.
type Box struct {
	Target *catalog.Target
	X, Y   int
	W, H   int
}

// Contains reports whether the cell (x, y) lies inside the box.
func (b Box) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// Layout arranges the targets of cat in a grid of the given number of
// columns inside a width by height area. Boxes are separated by one cell.
// Targets that do not fit are left out.
func Layout(cat *catalog.Catalogue, width, height, columns int) []Box {
	if cat == nil || cat.Len() == 0 || width <= 0 || height <= 0 {
		return nil
	}
	targets := cat.Targets()
	if columns <= 0 {
		columns = 1
	}
	if columns > len(targets) {
		columns = len(targets)
	}
	rows := (len(targets) + columns - 1) / columns

	w := (width - (columns - 1)) / columns
	h := (height - (rows - 1)) / rows
	if w < 1 || h < 1 {
		return nil
	}

	boxes := make([]Box, 0, len(targets))
	for i, t := range targets {
		col, row := i%columns, i/columns
		boxes = append(boxes, Box{
			Target: t,
			X:      col * (w + 1),
			Y:      row * (h + 1),
			W:      w,
			H:      h,
		})
	}
	return boxes
}

// HitTest returns the box under (x, y).
func HitTest(boxes []Box, x, y int) (Box, bool) {
	for _, b := range boxes {
		if b.Contains(x, y) {
			return b, true
		}
	}
	return Box{}, false
}

// Truncate shortens s to at most width terminal cells, breaking only between
// grapheme clusters. A shortened label ends in an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}

	var sb strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width-1 {
			break
		}
		sb.WriteString(cluster)
		used += w
	}
	sb.WriteString("…")
	return sb.String()
}
