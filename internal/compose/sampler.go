package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// sampler reads colours from a zero-origin NRGBA copy of the source image.
type sampler struct {
	img  *image.NRGBA
	w, h int
}

func newSampler(src image.Image) *sampler {
	img := imaging.Clone(src)
	return &sampler{img: img, w: img.Rect.Dx(), h: img.Rect.Dy()}
}

// inside reports whether (x, y) lies within the image area [0, w) x [0, h).
// Samples past the last pixel centre clamp to the edge pixel.
func (s *sampler) inside(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	return x >= 0 && y >= 0 && x < float64(s.w) && y < float64(s.h)
}

func (s *sampler) pixel(x, y int) color.NRGBA {
	i := s.img.PixOffset(x, y)
	p := s.img.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// sample returns the colour at (x, y) using the given interpolation. ok is
// false outside the pixel grid.
func (s *sampler) sample(x, y float64, mode Sampling) (color.NRGBA, bool) {
	if !s.inside(x, y) {
		return color.NRGBA{}, false
	}
	if mode == SamplingNearest {
		return s.pixel(min(int(x+0.5), s.w-1), min(int(y+0.5), s.h-1)), true
	}
	return s.bilinear(x, y), true
}

func (s *sampler) bilinear(x, y float64) color.NRGBA {
	x0 := min(int(x), s.w-1)
	y0 := min(int(y), s.h-1)
	x1 := min(x0+1, s.w-1)
	y1 := min(y0+1, s.h-1)
	fx := x - float64(x0)
	fy := y - float64(y0)
	c00 := s.pixel(x0, y0)
	c10 := s.pixel(x1, y0)
	c01 := s.pixel(x0, y1)
	c11 := s.pixel(x1, y1)
	r := lerp(lerp(float64(c00.R), float64(c10.R), fx), lerp(float64(c01.R), float64(c11.R), fx), fy)
	g := lerp(lerp(float64(c00.G), float64(c10.G), fx), lerp(float64(c01.G), float64(c11.G), fx), fy)
	b := lerp(lerp(float64(c00.B), float64(c10.B), fx), lerp(float64(c01.B), float64(c11.B), fx), fy)
	a := lerp(lerp(float64(c00.A), float64(c10.A), fx), lerp(float64(c01.A), float64(c11.A), fx), fy)
	return color.NRGBA{R: uint8(r + 0.5), G: uint8(g + 0.5), B: uint8(b + 0.5), A: uint8(a + 0.5)}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
