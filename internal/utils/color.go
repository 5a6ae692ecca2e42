package utils

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses "#rgb", "#rrggbb", "#rrggbbaa" (leading '#' optional) or
// the names white, black and transparent.
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case "black":
		return color.NRGBA{A: 255}, nil
	case "transparent":
		return color.NRGBA{}, nil
	}

	v = strings.TrimPrefix(v, "#")
	alpha := uint8(255)
	if len(v) == 8 {
		a, err := strconv.ParseUint(v[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		alpha = uint8(a)
		v = v[:6]
	}

	c, err := colorful.Hex("#" + v)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// FormatColor renders c as "#rrggbb", or "#rrggbbaa" when not opaque.
func FormatColor(c color.NRGBA) string {
	cf := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	if c.A == 255 {
		return cf.Hex()
	}
	return fmt.Sprintf("%s%02x", cf.Hex(), c.A)
}
