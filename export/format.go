package export

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSurface is returned when the raster surface cannot be allocated.
	ErrSurface = errors.New("unable to allocate raster surface")

	// ErrDecode is returned when the adjusted markup cannot be loaded as
	// an image.
	ErrDecode = errors.New("unable to decode svg as image")

	ErrUnknownFormat = errors.New("unknown export format")
)

type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

var Formats = []Format{FormatSVG, FormatPNG}

func ParseFormat(value string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Formats {
		if format == known {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
}

func (format Format) MIMEType() string {
	switch format {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func (format Format) String() string {
	return string(format)
}
