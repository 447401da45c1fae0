package graphic

import (
	"github.com/beevik/etree"
	"github.com/kovetskiy/mermaidmono/geom"
)

// Adjust returns a copy of the graphic prepared for export: clipping is
// removed from every element, overflow is visible everywhere, and the root
// viewport is set to box with an explicit width and height.
func (graphic *Graphic) Adjust(box geom.Rect) *Graphic {
	adjusted := graphic.Clone()
	root := adjusted.Root()

	unclip(root)

	style := ParseStyle(root.SelectAttrValue("style", ""))
	style.Delete("max-width")
	style.Set("overflow", "visible")
	root.CreateAttr("style", style.String())

	root.CreateAttr("viewBox", box.ViewBox())
	root.CreateAttr("width", geom.FormatNumber(box.Width()))
	root.CreateAttr("height", geom.FormatNumber(box.Height()))

	return adjusted
}

func unclip(element *etree.Element) {
	element.RemoveAttr("clip-path")

	style := ParseStyle(element.SelectAttrValue("style", ""))
	style.Delete("clip-path")
	style.Set("overflow", "visible")
	element.CreateAttr("style", style.String())

	for _, child := range element.ChildElements() {
		unclip(child)
	}
}
