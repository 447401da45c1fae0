package bounds

import (
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
	"oss.terrastruct.com/d2/lib/geo"
)

// Number of points sampled along every curve segment.
const curveSamples = 16

// pathBox compiles SVG path data and returns the box of its outline in
// root coordinates. Arcs come out of the compiler as cubic segments.
func pathBox(data string, ctm rasterx.Matrix2D) (geom.Rect, error) {
	cursor := &oksvg.PathCursor{}

	err := cursor.CompilePath(data)
	if err != nil {
		return geom.EmptyRect(), err
	}

	adder := &boxAdder{
		ctm: ctm,
		box: geom.EmptyRect(),
	}

	cursor.Path.AddTo(adder)

	return adder.box, nil
}

// boxAdder receives path segments and grows a box over them.
type boxAdder struct {
	ctm     rasterx.Matrix2D
	box     geom.Rect
	current *geo.Point
}

func (adder *boxAdder) Start(a fixed.Point26_6) {
	adder.current = point(a)
	adder.include(adder.current)
}

func (adder *boxAdder) Line(b fixed.Point26_6) {
	adder.current = point(b)
	adder.include(adder.current)
}

func (adder *boxAdder) QuadBezier(b, c fixed.Point26_6) {
	start := adder.start()
	control := point(b)
	end := point(c)

	// elevate to a cubic with the same shape
	adder.curve(
		start,
		geo.NewPoint(
			start.X+2.0/3.0*(control.X-start.X),
			start.Y+2.0/3.0*(control.Y-start.Y),
		),
		geo.NewPoint(
			end.X+2.0/3.0*(control.X-end.X),
			end.Y+2.0/3.0*(control.Y-end.Y),
		),
		end,
	)
}

func (adder *boxAdder) CubeBezier(b, c, d fixed.Point26_6) {
	adder.curve(adder.start(), point(b), point(c), point(d))
}

func (adder *boxAdder) Stop(closeLoop bool) {}

func (adder *boxAdder) start() *geo.Point {
	if adder.current == nil {
		return geo.NewPoint(0, 0)
	}

	return adder.current
}

func (adder *boxAdder) curve(points ...*geo.Point) {
	curve := geo.NewBezierCurve(points)
	for i := 1; i <= curveSamples; i++ {
		adder.include(curve.At(float64(i) / curveSamples))
	}

	adder.current = points[len(points)-1]
	adder.include(adder.current)
}

func (adder *boxAdder) include(p *geo.Point) {
	adder.box = adder.box.Include(adder.ctm.Transform(p.X, p.Y))
}

func point(p fixed.Point26_6) *geo.Point {
	return geo.NewPoint(float64(p.X)/64, float64(p.Y)/64)
}
