// Package geom holds the small amount of plane geometry the export pipeline
// needs: bounding rectangles, SVG affine transforms and number lists.
package geom

import (
	"fmt"
	"math"
	"strconv"

	"github.com/srwiley/rasterx"
)

// Rect is an axis-aligned bounding rectangle. The zero value is a valid
// degenerate rectangle at the origin; use EmptyRect to start an
// accumulation.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// EmptyRect returns the identity element for Union. Its extent is
// undefined and IsEmpty reports true until something is added to it.
func EmptyRect() Rect {
	return Rect{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// RectXYWH builds a rectangle from an origin and a size, the way SVG
// attributes and getBBox describe boxes.
func RectXYWH(x, y, width, height float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + width, MaxY: y + height}
}

// IsEmpty reports whether the rectangle is inverted or not finite.
func (r Rect) IsEmpty() bool {
	for _, v := range []float64{r.MinX, r.MinY, r.MaxX, r.MaxY} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return true
		}
	}

	return r.MinX > r.MaxX || r.MinY > r.MaxY
}

// HasExtent reports whether the rectangle covers any length along at least
// one axis. A horizontal line has extent; a lone point does not.
func (r Rect) HasExtent() bool {
	if r.IsEmpty() {
		return false
	}

	return r.Width() > 0 || r.Height() > 0
}

func (r Rect) Width() float64 {
	return r.MaxX - r.MinX
}

func (r Rect) Height() float64 {
	return r.MaxY - r.MinY
}

// Union returns the smallest rectangle covering both r and other. Empty
// operands are ignored.
func (r Rect) Union(other Rect) Rect {
	if other.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return other
	}

	return Rect{
		MinX: math.Min(r.MinX, other.MinX),
		MinY: math.Min(r.MinY, other.MinY),
		MaxX: math.Max(r.MaxX, other.MaxX),
		MaxY: math.Max(r.MaxY, other.MaxY),
	}
}

// Pad grows the rectangle by margin on all four sides.
func (r Rect) Pad(margin float64) Rect {
	if r.IsEmpty() {
		return r
	}

	return Rect{
		MinX: r.MinX - margin,
		MinY: r.MinY - margin,
		MaxX: r.MaxX + margin,
		MaxY: r.MaxY + margin,
	}
}

// Transform maps the four corners through m and returns their bounding box.
func (r Rect) Transform(m rasterx.Matrix2D) Rect {
	if r.IsEmpty() {
		return r
	}

	out := EmptyRect()
	for _, corner := range [][2]float64{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MaxX, r.MaxY},
		{r.MinX, r.MaxY},
	} {
		x, y := m.Transform(corner[0], corner[1])
		out = out.Include(x, y)
	}

	return out
}

// Include grows the rectangle to cover the point.
func (r Rect) Include(x, y float64) Rect {
	return Rect{
		MinX: math.Min(r.MinX, x),
		MinY: math.Min(r.MinY, y),
		MaxX: math.Max(r.MaxX, x),
		MaxY: math.Max(r.MaxY, y),
	}
}

// ViewBox formats the rectangle as an SVG viewBox attribute value.
func (r Rect) ViewBox() string {
	return fmt.Sprintf(
		"%s %s %s %s",
		FormatNumber(r.MinX),
		FormatNumber(r.MinY),
		FormatNumber(r.Width()),
		FormatNumber(r.Height()),
	)
}

func (r Rect) String() string {
	if r.IsEmpty() {
		return "{empty}"
	}

	return fmt.Sprintf(
		"{x: %s, y: %s, width: %s, height: %s}",
		FormatNumber(r.MinX),
		FormatNumber(r.MinY),
		FormatNumber(r.Width()),
		FormatNumber(r.Height()),
	)
}

// FormatNumber prints v with the shortest representation that round-trips.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
