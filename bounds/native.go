package bounds

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	"github.com/srwiley/rasterx"
	"oss.terrastruct.com/d2/lib/textmeasure"
)

// Elements that never paint by themselves. Their subtrees are referenced
// from elsewhere or hold no geometry at all.
var nonRendering = map[string]bool{
	"defs":           true,
	"clipPath":       true,
	"mask":           true,
	"marker":         true,
	"symbol":         true,
	"pattern":        true,
	"linearGradient": true,
	"radialGradient": true,
	"filter":         true,
	"style":          true,
	"script":         true,
	"title":          true,
	"desc":           true,
	"metadata":       true,
}

// Native measures graphics without a browser. Geometry is derived from the
// element attributes; text is sized with font metrics.
type Native struct {
	ruler *textmeasure.Ruler

	// the ruler keeps per-call buffers
	mutex sync.Mutex

	font textStyle
}

// NewNative returns a measurer whose text inherits the given family and
// size unless the graphic overrides them.
func NewNative(fontFamily string, fontSize float64) (*Native, error) {
	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return nil, karma.Format(err, "unable to load font metrics")
	}

	if fontSize <= 0 {
		fontSize = 16
	}

	return &Native{
		ruler: ruler,
		font: textStyle{
			family:   fontFamily,
			size:     fontSize,
			anchor:   "start",
			baseline: "auto",
			weight:   "normal",
			style:    "normal",
		},
	}, nil
}

func (native *Native) Measure(
	ctx context.Context,
	graphic *graphic.Graphic,
) ([]geom.Rect, error) {
	native.mutex.Lock()
	defer native.mutex.Unlock()

	walker := &walker{
		native: native,
		ctx:    ctx,
	}

	root := graphic.Root()
	walker.children(root, rasterx.Identity, native.font.inherit(root))

	if walker.err != nil {
		return nil, walker.err
	}

	log.Tracef(nil, "measured %d drawable elements", len(walker.boxes))

	return walker.boxes, nil
}

type walker struct {
	native *Native
	ctx    context.Context
	boxes  []geom.Rect
	err    error
}

func (walker *walker) children(
	element *etree.Element,
	ctm rasterx.Matrix2D,
	font textStyle,
) geom.Rect {
	result := geom.EmptyRect()
	for _, child := range element.ChildElements() {
		result = result.Union(walker.element(child, ctm, font))
	}

	return result
}

// element returns the box of element in root coordinates and records it
// when the element is drawable.
func (walker *walker) element(
	element *etree.Element,
	ctm rasterx.Matrix2D,
	font textStyle,
) geom.Rect {
	if walker.err != nil {
		return geom.EmptyRect()
	}

	if err := walker.ctx.Err(); err != nil {
		walker.err = err
		return geom.EmptyRect()
	}

	if nonRendering[element.Tag] {
		return geom.EmptyRect()
	}

	if display, ok := graphic.Property(element, "display"); ok &&
		strings.TrimSpace(display) == "none" {
		return geom.EmptyRect()
	}

	if value := element.SelectAttrValue("transform", ""); value != "" {
		local, err := geom.ParseTransform(value)
		if err != nil {
			log.Tracef(nil, "ignoring transform %q on <%s>: %s", value, element.Tag, err)
		} else {
			ctm = ctm.Mult(local)
		}
	}

	font = font.inherit(element)

	var (
		box      geom.Rect
		drawable = true
	)

	switch element.Tag {
	case "g":
		box = walker.children(element, ctm, font)

	case "svg":
		drawable = false
		box = walker.children(element, ctm.Mult(viewport(element, font.size)), font)

	case "a", "switch":
		drawable = false
		box = walker.children(element, ctm, font)

	case "rect", "foreignObject", "image", "use":
		box = walker.rect(element, font.size).Transform(ctm)

	case "circle":
		cx := length(element, "cx", font.size)
		cy := length(element, "cy", font.size)
		r := length(element, "r", font.size)
		box = ellipse(cx, cy, r, r, ctm)

	case "ellipse":
		cx := length(element, "cx", font.size)
		cy := length(element, "cy", font.size)
		rx := length(element, "rx", font.size)
		ry := length(element, "ry", font.size)
		box = ellipse(cx, cy, rx, ry, ctm)

	case "line":
		box = geom.EmptyRect().
			Include(ctm.Transform(length(element, "x1", font.size), length(element, "y1", font.size))).
			Include(ctm.Transform(length(element, "x2", font.size), length(element, "y2", font.size)))

	case "polyline", "polygon":
		box = polyline(element.SelectAttrValue("points", ""), ctm)

	case "path":
		value := element.SelectAttrValue("d", "")
		path, err := pathBox(value, ctm)
		if err != nil {
			log.Tracef(nil, "skipping unreadable path data %q: %s", value, err)
			return geom.EmptyRect()
		}
		box = path

	case "text":
		box = walker.native.text(element, font, ctm)

	default:
		drawable = false
		box = walker.children(element, ctm, font)
	}

	if drawable {
		walker.boxes = append(walker.boxes, box)
	}

	return box
}

func (walker *walker) rect(element *etree.Element, fontSize float64) geom.Rect {
	width := length(element, "width", fontSize)
	height := length(element, "height", fontSize)
	if width < 0 || height < 0 {
		return geom.EmptyRect()
	}

	return geom.RectXYWH(
		length(element, "x", fontSize),
		length(element, "y", fontSize),
		width,
		height,
	)
}

func ellipse(cx, cy, rx, ry float64, ctm rasterx.Matrix2D) geom.Rect {
	if rx < 0 || ry < 0 {
		return geom.EmptyRect()
	}

	// Sampling the outline keeps rotated ellipses tight, which the corners
	// of the axis-aligned box would not.
	box := geom.EmptyRect()
	for i := 0; i < 64; i++ {
		angle := 2 * math.Pi * float64(i) / 64
		box = box.Include(ctm.Transform(cx+rx*math.Cos(angle), cy+ry*math.Sin(angle)))
	}

	return box
}

func polyline(points string, ctm rasterx.Matrix2D) geom.Rect {
	numbers, err := geom.ParseNumbers(points)
	if err != nil {
		return geom.EmptyRect()
	}

	box := geom.EmptyRect()
	for i := 0; i+1 < len(numbers); i += 2 {
		box = box.Include(ctm.Transform(numbers[i], numbers[i+1]))
	}

	return box
}

func length(element *etree.Element, name string, fontSize float64) float64 {
	value, ok := geom.ParseLength(element.SelectAttrValue(name, ""), fontSize)
	if !ok {
		return 0
	}

	return value
}

// viewport maps the user space of a nested <svg> into its parent.
func viewport(element *etree.Element, fontSize float64) rasterx.Matrix2D {
	x := length(element, "x", fontSize)
	y := length(element, "y", fontSize)

	result := rasterx.Identity.Translate(x, y)

	value := element.SelectAttrValue("viewBox", "")
	if value == "" {
		return result
	}

	view, err := geom.ParseViewBox(value)
	if err != nil || !view.HasExtent() || view.Width() == 0 || view.Height() == 0 {
		return result
	}

	width, ok := geom.ParseLength(element.SelectAttrValue("width", ""), fontSize)
	if !ok {
		width = view.Width()
	}

	height, ok := geom.ParseLength(element.SelectAttrValue("height", ""), fontSize)
	if !ok {
		height = view.Height()
	}

	sx := width / view.Width()
	sy := height / view.Height()

	aspect := strings.TrimSpace(element.SelectAttrValue("preserveAspectRatio", ""))
	if aspect != "none" {
		scale := math.Min(sx, sy)
		sx, sy = scale, scale
		result = result.Translate(
			(width-view.Width()*scale)/2,
			(height-view.Height()*scale)/2,
		)
	}

	return result.
		Scale(sx, sy).
		Translate(-view.MinX, -view.MinY)
}
