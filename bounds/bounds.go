// Package bounds computes the tight bounding rectangle of everything a
// graphic actually paints, independent of what its root element declares.
package bounds

import (
	"context"
	"errors"

	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
)

// DefaultPadding is the margin added on every side of the measured box.
const DefaultPadding = 80.0

var ErrNoGeometry = errors.New("graphic paints no measurable geometry")

// Measurer reports the boxes of the drawable elements of a graphic in the
// coordinate space of its root element.
type Measurer interface {
	Measure(ctx context.Context, graphic *graphic.Graphic) ([]geom.Rect, error)
}

// Accumulate folds boxes into their union, skipping boxes that have
// neither width nor height. It reports false when nothing qualified.
func Accumulate(boxes []geom.Rect) (geom.Rect, bool) {
	result := geom.EmptyRect()
	found := false

	for _, box := range boxes {
		if !box.HasExtent() {
			continue
		}

		result = result.Union(box)
		found = true
	}

	return result, found
}

// Compute measures the graphic and returns the union of its painted boxes,
// or ErrNoGeometry.
func Compute(
	ctx context.Context,
	measurer Measurer,
	graphic *graphic.Graphic,
) (geom.Rect, error) {
	boxes, err := measurer.Measure(ctx, graphic)
	if err != nil {
		return geom.EmptyRect(), err
	}

	box, ok := Accumulate(boxes)
	if !ok {
		return geom.EmptyRect(), ErrNoGeometry
	}

	return box, nil
}
