// Package graphic wraps a rendered SVG document as a tree of drawable
// elements and produces the adjusted copy used for export.
package graphic

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/beevik/etree"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/reconquest/karma-go"
)

// ErrNoRoot is returned when the markup has no <svg> root element.
var ErrNoRoot = errors.New("no drawable svg root found")

// Graphic is a rendered diagram: an SVG element tree with a native
// (declared) bounding box.
type Graphic struct {
	doc *etree.Document
}

// Parse reads SVG markup. Engines that serialize through innerHTML emit
// HTML-isms inside foreignObject labels (void <br>, &nbsp;), so the reader
// is permissive and closes HTML void elements itself.
func Parse(data []byte) (*Graphic, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.Entity = xml.HTMLEntity
	doc.ReadSettings.AutoClose = xml.HTMLAutoClose

	err := doc.ReadFromBytes(data)
	if err != nil {
		return nil, karma.Format(err, "unable to parse svg markup")
	}

	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, ErrNoRoot
	}

	return &Graphic{doc: doc}, nil
}

// Root returns the outermost <svg> element.
func (graphic *Graphic) Root() *etree.Element {
	return graphic.doc.Root()
}

// Clone returns a deep copy that can be modified independently.
func (graphic *Graphic) Clone() *Graphic {
	return &Graphic{doc: graphic.doc.Copy()}
}

// ID returns the root element identifier.
func (graphic *Graphic) ID() string {
	return graphic.Root().SelectAttrValue("id", "")
}

// SetID re-keys the graphic: the root id changes and every stylesheet
// selector scoped to the old id follows it.
func (graphic *Graphic) SetID(id string) {
	root := graphic.Root()

	previous := root.SelectAttrValue("id", "")
	root.CreateAttr("id", id)

	if previous == "" || previous == id {
		return
	}

	for _, style := range root.FindElements("//style") {
		for _, token := range style.Child {
			data, ok := token.(*etree.CharData)
			if !ok {
				continue
			}

			data.Data = strings.ReplaceAll(data.Data, "#"+previous, "#"+id)
		}
	}
}

// Declared returns the bounding box the graphic declares for itself: its
// viewBox, or its width and height when there is no viewBox.
func (graphic *Graphic) Declared() (geom.Rect, bool) {
	root := graphic.Root()

	if value := root.SelectAttrValue("viewBox", ""); value != "" {
		box, err := geom.ParseViewBox(value)
		if err == nil && box.HasExtent() {
			return box, true
		}
	}

	width, okWidth := geom.ParseLength(root.SelectAttrValue("width", ""), 0)
	height, okHeight := geom.ParseLength(root.SelectAttrValue("height", ""), 0)
	if okWidth && okHeight && (width > 0 || height > 0) {
		return geom.RectXYWH(0, 0, width, height), true
	}

	return geom.Rect{}, false
}

// Bytes serializes the graphic back to markup.
func (graphic *Graphic) Bytes() ([]byte, error) {
	data, err := graphic.doc.WriteToBytes()
	if err != nil {
		return nil, karma.Format(err, "unable to serialize svg markup")
	}

	return data, nil
}
