package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumbers splits an SVG number list. Numbers may be separated by
// whitespace, commas or nothing at all when the sign or a second decimal
// point starts the next number ("10-5", "0.5.5").
func ParseNumbers(value string) ([]float64, error) {
	var (
		numbers []float64
		i       int
	)

	for i < len(value) {
		c := value[i]
		if c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		end := scanNumber(value, i)
		if end == i {
			return nil, fmt.Errorf("unexpected character %q at %d in %q", c, i, value)
		}

		number, err := strconv.ParseFloat(value[i:end], 64)
		if err != nil {
			return nil, err
		}

		numbers = append(numbers, number)
		i = end
	}

	return numbers, nil
}

func scanNumber(value string, start int) int {
	i := start
	if i < len(value) && (value[i] == '+' || value[i] == '-') {
		i++
	}

	var digits, dot bool
scan:
	for i < len(value) {
		c := value[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot:
			dot = true
		default:
			break scan
		}
		i++
	}

	if !digits {
		return start
	}

	if i < len(value) && (value[i] == 'e' || value[i] == 'E') {
		j := i + 1
		if j < len(value) && (value[j] == '+' || value[j] == '-') {
			j++
		}
		k := j
		for k < len(value) && value[k] >= '0' && value[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}

	return i
}

// ParseViewBox parses "min-x min-y width height".
func ParseViewBox(value string) (Rect, error) {
	numbers, err := ParseNumbers(value)
	if err != nil {
		return Rect{}, err
	}

	if len(numbers) != 4 {
		return Rect{}, fmt.Errorf("viewBox expects 4 numbers, got %d", len(numbers))
	}

	if numbers[2] < 0 || numbers[3] < 0 {
		return Rect{}, fmt.Errorf("viewBox has negative size: %q", value)
	}

	return RectXYWH(numbers[0], numbers[1], numbers[2], numbers[3]), nil
}

// ParseLength parses an SVG length in user units. Percentages and unknown
// units are reported as not ok; em lengths are resolved against fontSize.
func ParseLength(value string, fontSize float64) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasSuffix(value, "%") {
		return 0, false
	}

	factor := 1.0
	for _, unit := range []struct {
		suffix string
		factor float64
	}{
		{"px", 1},
		{"em", fontSize},
		{"pt", 4.0 / 3.0},
	} {
		if strings.HasSuffix(value, unit.suffix) {
			value = strings.TrimSuffix(value, unit.suffix)
			factor = unit.factor
			break
		}
	}

	number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}

	return number * factor, true
}
