package types

import "time"

// Config is what the command line, the environment and the config file
// decide together.
type Config struct {
	Engine     string
	Theme      string
	FontFamily string
	FontSize   float64

	Padding    float64
	Scale      float64
	Measurer   string
	Rasterizer string
	MaxPixels  int

	RenderTimeout time.Duration

	Name      string
	OutputDir string
	Formats   []string
}
