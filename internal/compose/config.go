package compose

import (
	"fmt"
	"image/color"
	"strings"
)

// WarpMode selects how image A is painted onto the canvas.
type WarpMode string

const (
	// WarpInverse maps every canvas pixel back into A through H^-1. Leaves no holes.
	WarpInverse WarpMode = "inverse"
	// WarpForward scatters every A pixel through H. Magnified regions get holes.
	WarpForward WarpMode = "forward"
	// WarpNone only places B on the sized canvas.
	WarpNone WarpMode = "none"
)

// Sampling selects the interpolation used by inverse warping.
type Sampling string

const (
	SamplingBilinear Sampling = "bilinear"
	SamplingNearest  Sampling = "nearest"
)

// Overlap selects which image wins where both cover a canvas pixel.
type Overlap string

const (
	// OverlapA paints A over B.
	OverlapA Overlap = "a"
	// OverlapB keeps B and lets A fill only pixels outside B.
	OverlapB Overlap = "b"
	// OverlapBlend averages A and B.
	OverlapBlend Overlap = "blend"
)

// DefaultMaxCanvasPixels caps canvas allocation at 100 megapixels.
const DefaultMaxCanvasPixels = 100_000_000

// Config holds compositor options.
type Config struct {
	Warp       WarpMode
	Sampling   Sampling
	Overlap    Overlap
	Background color.NRGBA
	// MaxCanvasPixels rejects canvases larger than this many pixels; <= 0 disables the limit.
	MaxCanvasPixels int
}

// DefaultConfig returns inverse bilinear warping of A over B on white.
func DefaultConfig() Config {
	return Config{
		Warp:            WarpInverse,
		Sampling:        SamplingBilinear,
		Overlap:         OverlapA,
		Background:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		MaxCanvasPixels: DefaultMaxCanvasPixels,
	}
}

// Validate checks that every mode names a known option.
func (c Config) Validate() error {
	if _, err := ParseWarpMode(string(c.Warp)); err != nil {
		return err
	}
	if _, err := ParseSampling(string(c.Sampling)); err != nil {
		return err
	}
	if _, err := ParseOverlap(string(c.Overlap)); err != nil {
		return err
	}
	return nil
}

// ParseWarpMode parses a warp mode name, case-insensitively.
func ParseWarpMode(s string) (WarpMode, error) {
	switch m := WarpMode(strings.ToLower(strings.TrimSpace(s))); m {
	case WarpInverse, WarpForward, WarpNone:
		return m, nil
	}
	return "", fmt.Errorf("invalid warp mode %q (want inverse, forward or none)", s)
}

// ParseSampling parses a sampling name, case-insensitively.
func ParseSampling(s string) (Sampling, error) {
	switch m := Sampling(strings.ToLower(strings.TrimSpace(s))); m {
	case SamplingBilinear, SamplingNearest:
		return m, nil
	}
	return "", fmt.Errorf("invalid sampling %q (want bilinear or nearest)", s)
}

// ParseOverlap parses an overlap policy name, case-insensitively.
func ParseOverlap(s string) (Overlap, error) {
	switch m := Overlap(strings.ToLower(strings.TrimSpace(s))); m {
	case OverlapA, OverlapB, OverlapBlend:
		return m, nil
	}
	return "", fmt.Errorf("invalid overlap policy %q (want a, b or blend)", s)
}
