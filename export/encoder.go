// Package export turns a rendered graphic into a standalone SVG or PNG
// file whose canvas fits everything the graphic paints.
package export

import (
	"context"
	"fmt"
	"math"

	"github.com/kovetskiy/mermaidmono/artifact"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

// DefaultScale is the supersampling factor of raster exports.
const DefaultScale = 3.0

// Rasterizer paints SVG markup onto an opaque white surface of the given
// size, scaling the graphic to fill it, and returns PNG data.
type Rasterizer interface {
	Rasterize(ctx context.Context, markup []byte, width, height int) ([]byte, error)
}

// Encoder serializes graphics that have already been measured.
type Encoder struct {
	Scale      float64
	Rasterizer Rasterizer
}

func NewEncoder(scale float64, rasterizer Rasterizer) *Encoder {
	if scale <= 0 {
		scale = DefaultScale
	}

	return &Encoder{
		Scale:      scale,
		Rasterizer: rasterizer,
	}
}

// Encode writes the graphic framed by padded in the requested format.
// The source graphic is left untouched.
func (encoder *Encoder) Encode(
	ctx context.Context,
	source *graphic.Graphic,
	padded geom.Rect,
	format Format,
	name string,
) (*artifact.Artifact, error) {
	if padded.IsEmpty() || !padded.HasExtent() {
		return nil, karma.Describe("bounds", padded.String()).
			Format(nil, "refusing to export a graphic without extent")
	}

	adjusted := source.Adjust(padded)

	markup, err := adjusted.Bytes()
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSVG:
		return artifact.New(
			name,
			string(FormatSVG),
			FormatSVG.MIMEType(),
			markup,
			SurfaceSize(padded.Width(), 1),
			SurfaceSize(padded.Height(), 1),
		)

	case FormatPNG:
		if encoder.Rasterizer == nil {
			return nil, fmt.Errorf("%w: no rasterizer configured", ErrSurface)
		}

		width := SurfaceSize(padded.Width(), encoder.Scale)
		height := SurfaceSize(padded.Height(), encoder.Scale)

		log.Debugf(
			nil,
			"rasterizing %s at %dx%d (scale %s)",
			padded, width, height, geom.FormatNumber(encoder.Scale),
		)

		data, err := encoder.Rasterizer.Rasterize(ctx, markup, width, height)
		if err != nil {
			return nil, err
		}

		return artifact.New(name, string(FormatPNG), FormatPNG.MIMEType(), data, width, height)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// SurfaceSize is the pixel length of a side of length units at scale,
// rounded up. Integral products are exact.
func SurfaceSize(length, scale float64) int {
	size := int(math.Ceil(length*scale - 1e-6))
	if size < 1 {
		size = 1
	}

	return size
}
