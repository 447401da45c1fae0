package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// DefaultMaxPixels bounds the surfaces the native rasterizer allocates.
const DefaultMaxPixels = 64 * 1024 * 1024

// NativeRasterizer paints with oksvg and rasterx. It draws shapes and
// strokes only; text needs the browser rasterizer.
type NativeRasterizer struct {
	MaxPixels int
}

func NewNativeRasterizer(maxPixels int) *NativeRasterizer {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	return &NativeRasterizer{MaxPixels: maxPixels}
}

func (rasterizer *NativeRasterizer) Rasterize(
	ctx context.Context,
	markup []byte,
	width, height int,
) ([]byte, error) {
	if width <= 0 || height <= 0 || width*height > rasterizer.MaxPixels {
		return nil, fmt.Errorf(
			"%w: %dx%d exceeds the limit of %d pixels",
			ErrSurface, width, height, rasterizer.MaxPixels,
		)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("%w: markup declares no viewBox", ErrDecode)
	}

	// SetTarget translates by the viewBox origin before scaling, which
	// leaves a padded origin unscaled. Map the viewBox onto the surface
	// directly.
	icon.Transform = rasterx.Identity.
		Scale(float64(width)/icon.ViewBox.W, float64(height)/icon.ViewBox.H).
		Translate(-icon.ViewBox.X, -icon.ViewBox.Y)

	surface := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(surface, surface.Bounds(), image.White, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, surface, surface.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)

	icon.Draw(dasher, 1)

	var buffer bytes.Buffer

	err = png.Encode(&buffer, surface)
	if err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}

	return buffer.Bytes(), nil
}
