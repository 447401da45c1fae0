package geom

import (
	"fmt"
	"math"
	"strings"

	"github.com/srwiley/rasterx"
)

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ParseTransform parses the value of an SVG transform attribute. An empty
// value yields the identity.
func ParseTransform(value string) (rasterx.Matrix2D, error) {
	result := rasterx.Identity

	rest := strings.TrimSpace(value)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return rasterx.Identity, fmt.Errorf("unexpected transform syntax: %q", value)
		}

		closing := strings.IndexByte(rest[open:], ')')
		if closing < 0 {
			return rasterx.Identity, fmt.Errorf("unterminated transform: %q", value)
		}
		closing += open

		name := strings.TrimSpace(rest[:open])
		args, err := ParseNumbers(rest[open+1 : closing])
		if err != nil {
			return rasterx.Identity, fmt.Errorf("transform %s: %w", name, err)
		}

		result, err = applyStep(result, name, args)
		if err != nil {
			return rasterx.Identity, err
		}

		rest = strings.TrimLeft(rest[closing+1:], " \t\r\n,")
	}

	return result, nil
}

// applyStep appends one transform function to m.
func applyStep(m rasterx.Matrix2D, name string, args []float64) (rasterx.Matrix2D, error) {
	switch name {
	case "matrix":
		if len(args) != 6 {
			return m, fmt.Errorf("matrix expects 6 arguments, got %d", len(args))
		}
		return m.Mult(rasterx.Matrix2D{
			A: args[0], B: args[1],
			C: args[2], D: args[3],
			E: args[4], F: args[5],
		}), nil

	case "translate":
		switch len(args) {
		case 1:
			return m.Translate(args[0], 0), nil
		case 2:
			return m.Translate(args[0], args[1]), nil
		}

	case "scale":
		switch len(args) {
		case 1:
			return m.Scale(args[0], args[0]), nil
		case 2:
			return m.Scale(args[0], args[1]), nil
		}

	case "rotate":
		switch len(args) {
		case 1:
			return m.Rotate(radians(args[0])), nil
		case 3:
			return m.Translate(args[1], args[2]).
				Rotate(radians(args[0])).
				Translate(-args[1], -args[2]), nil
		}

	case "skewX":
		if len(args) == 1 {
			return m.SkewX(radians(args[0])), nil
		}

	case "skewY":
		if len(args) == 1 {
			return m.SkewY(radians(args[0])), nil
		}

	default:
		return m, fmt.Errorf("unknown transform: %q", name)
	}

	return m, fmt.Errorf(
		"transform %s: unexpected number of arguments: %d",
		name,
		len(args),
	)
}
