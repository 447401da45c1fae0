package export

import (
	"context"
	"errors"

	"github.com/kovetskiy/mermaidmono/artifact"
	"github.com/kovetskiy/mermaidmono/bounds"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/reconquest/pkg/log"
)

// Exporter runs the whole pipeline: measure, fall back to the declared
// box, pad, encode.
type Exporter struct {
	Measurer bounds.Measurer
	Encoder  *Encoder
	Padding  float64
}

func NewExporter(measurer bounds.Measurer, encoder *Encoder, padding float64) *Exporter {
	return &Exporter{
		Measurer: measurer,
		Encoder:  encoder,
		Padding:  padding,
	}
}

// Bounds returns the padded export frame of the graphic.
func (exporter *Exporter) Bounds(ctx context.Context, source *graphic.Graphic) (geom.Rect, error) {
	box, err := bounds.Compute(ctx, exporter.Measurer, source)
	if err != nil {
		if ctx.Err() != nil {
			return geom.EmptyRect(), ctx.Err()
		}

		declared, ok := source.Declared()
		if !ok {
			log.Errorf(err, "graphic %q declares no size to fall back to", source.ID())
			return geom.EmptyRect(), bounds.ErrNoGeometry
		}

		if errors.Is(err, bounds.ErrNoGeometry) {
			log.Warningf(nil, "graphic %q paints nothing measurable, using declared %s", source.ID(), declared)
		} else {
			log.Warningf(err, "unable to measure graphic %q, using declared %s", source.ID(), declared)
		}

		box = declared
	}

	log.Debugf(nil, "graphic %q bounds: %s", source.ID(), box)

	return box.Pad(exporter.Padding), nil
}

// Export produces an artifact named name in the given format. No artifact
// is returned on any failure.
func (exporter *Exporter) Export(
	ctx context.Context,
	source *graphic.Graphic,
	format Format,
	name string,
) (*artifact.Artifact, error) {
	padded, err := exporter.Bounds(ctx, source)
	if err != nil {
		return nil, err
	}

	result, err := exporter.Encoder.Encode(ctx, source, padded, format, name)
	if err != nil {
		log.Errorf(err, "unable to export %q as %s", source.ID(), format)
		return nil, err
	}

	log.Infof(
		nil,
		"exported %s: %dx%d, %d bytes",
		result.Filename, result.Width, result.Height, len(result.Data),
	)

	return result, nil
}
