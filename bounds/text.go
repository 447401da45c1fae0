package bounds

import (
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/srwiley/rasterx"
	"oss.terrastruct.com/d2/d2renderers/d2fonts"
)

// Share of the line height above the baseline.
const ascent = 0.8

// textStyle carries the inherited properties that affect text metrics.
type textStyle struct {
	family   string
	size     float64
	anchor   string
	baseline string
	weight   string
	style    string
}

func (style textStyle) inherit(element *etree.Element) textStyle {
	if value, ok := graphic.Property(element, "font-family"); ok && value != "inherit" {
		style.family = value
	}

	if value, ok := graphic.Property(element, "font-size"); ok {
		if size, ok := geom.ParseLength(value, style.size); ok && size > 0 {
			style.size = size
		}
	}

	for _, property := range []struct {
		name   string
		target *string
	}{
		{"text-anchor", &style.anchor},
		{"dominant-baseline", &style.baseline},
		{"font-weight", &style.weight},
		{"font-style", &style.style},
	} {
		value, ok := graphic.Property(element, property.name)
		if ok && value != "" && value != "inherit" {
			*property.target = strings.TrimSpace(value)
		}
	}

	return style
}

func (style textStyle) font() d2fonts.Font {
	family := d2fonts.SourceSansPro

	lower := strings.ToLower(style.family)
	for _, marker := range []string{"mono", "courier", "code", "consol"} {
		if strings.Contains(lower, marker) {
			family = d2fonts.SourceCodePro
			break
		}
	}

	fontStyle := d2fonts.FONT_STYLE_REGULAR
	switch {
	case style.bold():
		fontStyle = d2fonts.FONT_STYLE_BOLD
	case style.style == "italic" || style.style == "oblique":
		fontStyle = d2fonts.FONT_STYLE_ITALIC
	}

	size := int(math.Round(style.size))
	if size < 1 {
		size = 1
	}

	return family.Font(size, fontStyle)
}

func (style textStyle) bold() bool {
	switch style.weight {
	case "bold", "bolder":
		return true
	}

	weight, err := strconv.Atoi(style.weight)

	return err == nil && weight >= 600
}

// run is a piece of text laid out from a single anchor point.
type run struct {
	x, y  float64
	text  strings.Builder
	style textStyle
}

// text lays out a <text> element the way mermaid and d2 emit them: every
// <tspan> carrying x, y or dy starts a new line at that position.
func (native *Native) text(
	element *etree.Element,
	style textStyle,
	ctm rasterx.Matrix2D,
) geom.Rect {
	x, _ := first(element, "x", style.size)
	y, _ := first(element, "y", style.size)
	dx, _ := first(element, "dx", style.size)
	dy, _ := first(element, "dy", style.size)

	current := &run{x: x + dx, y: y + dy, style: style}
	runs := []*run{current}

	var collect func(parent *etree.Element, style textStyle)
	collect = func(parent *etree.Element, style textStyle) {
		for _, token := range parent.Child {
			switch token := token.(type) {
			case *etree.CharData:
				current.text.WriteString(token.Data)

			case *etree.Element:
				if nonRendering[token.Tag] {
					continue
				}

				inner := style.inherit(token)

				nx, hasX := first(token, "x", inner.size)
				ny, hasY := first(token, "y", inner.size)
				ndx, _ := first(token, "dx", inner.size)
				ndy, _ := first(token, "dy", inner.size)

				if hasX || hasY || ndx != 0 || ndy != 0 {
					next := &run{x: current.x, y: current.y, style: inner}
					if hasX {
						next.x = nx
					}
					if hasY {
						next.y = ny
					}
					next.x += ndx
					next.y += ndy

					current = next
					runs = append(runs, current)
				}

				collect(token, inner)
			}
		}
	}

	collect(element, style)

	box := geom.EmptyRect()
	for _, line := range runs {
		box = box.Union(native.measureRun(line).Transform(ctm))
	}

	return box
}

func (native *Native) measureRun(line *run) geom.Rect {
	text := strings.Join(strings.Fields(line.text.String()), " ")
	if text == "" {
		return geom.EmptyRect()
	}

	width, height := native.ruler.MeasurePrecise(line.style.font(), text)

	x := line.x
	switch line.style.anchor {
	case "middle":
		x -= width / 2
	case "end":
		x -= width
	}

	top := line.y - height*ascent
	switch line.style.baseline {
	case "middle", "central":
		top = line.y - height/2
	case "hanging", "text-before-edge", "text-top":
		top = line.y
	case "text-after-edge", "text-bottom", "ideographic":
		top = line.y - height
	}

	return geom.RectXYWH(x, top, width, height)
}

// first returns the first value of a coordinate list attribute.
func first(element *etree.Element, name string, fontSize float64) (float64, bool) {
	value := strings.TrimSpace(element.SelectAttrValue(name, ""))
	if value == "" {
		return 0, false
	}

	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return 0, false
	}

	return geom.ParseLength(fields[0], fontSize)
}
