// Package compose places two images on a shared canvas given the
// homography that maps image A into image B's frame.
package compose

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"golang.org/x/image/draw"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// Result is a composed panorama.
type Result struct {
	// Canvas is freshly allocated and owned by the caller.
	Canvas *image.NRGBA
	// Bounds is the unsnapped bounding box in B's frame.
	Bounds r2.Rect
	// Origin is the B-frame coordinate of canvas pixel (0, 0). B's pixel
	// (x, y) sits at canvas (x - Origin.X, y - Origin.Y).
	Origin image.Point
	// PaintedA counts canvas pixels written from image A.
	PaintedA int
}

// Compositor renders panoramas. It is stateless and safe for concurrent use.
type Compositor struct {
	cfg    Config
	logger *slog.Logger
}

// NewCompositor creates a compositor. Empty modes fall back to the defaults
// and mode names are matched case-insensitively. Unknown modes are kept as
// given and rejected by Compose.
func NewCompositor(cfg Config, logger *slog.Logger) *Compositor {
	def := DefaultConfig()
	if cfg.Warp == "" {
		cfg.Warp = def.Warp
	} else if m, err := ParseWarpMode(string(cfg.Warp)); err == nil {
		cfg.Warp = m
	}
	if cfg.Sampling == "" {
		cfg.Sampling = def.Sampling
	} else if m, err := ParseSampling(string(cfg.Sampling)); err == nil {
		cfg.Sampling = m
	}
	if cfg.Overlap == "" {
		cfg.Overlap = def.Overlap
	} else if m, err := ParseOverlap(string(cfg.Overlap)); err == nil {
		cfg.Overlap = m
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (c *Compositor) Config() Config { return c.cfg }

// Compose runs the default compositor.
func Compose(a, b image.Image, h homography.Homography) (*Result, error) {
	return NewCompositor(DefaultConfig(), nil).Compose(a, b, h)
}

// Compose renders A and B onto the minimal canvas covering B and the
// projected corners of A. Neither input is modified.
func (c *Compositor) Compose(a, b image.Image, h homography.Homography) (*Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	sizeA := a.Bounds().Size()
	sizeB := b.Bounds().Size()

	corners, err := ProjectCorners(h, sizeA)
	if err != nil {
		return nil, err
	}
	raw := canvasBounds(corners, sizeB)
	rect, err := snapBounds(raw, c.cfg.MaxCanvasPixels)
	if err != nil {
		return nil, err
	}
	var inv homography.Homography
	if c.cfg.Warp == WarpInverse {
		if inv, err = h.Inverse(); err != nil {
			return nil, &InvalidCanvasError{Reason: "transform is not invertible", Err: err}
		}
	}

	res := &Result{
		Canvas: imaging.New(rect.Dx(), rect.Dy(), c.cfg.Background),
		Bounds: raw,
		Origin: rect.Min,
	}
	c.logger.Debug("Canvas allocated",
		"width", rect.Dx(), "height", rect.Dy(),
		"origin_x", rect.Min.X, "origin_y", rect.Min.Y,
		"warp", string(c.cfg.Warp))

	// B is translated only, never resampled.
	bRect := image.Rectangle{Min: rect.Min.Mul(-1), Max: rect.Min.Mul(-1).Add(sizeB)}
	draw.Draw(res.Canvas, bRect, b, b.Bounds().Min, draw.Src)

	p := painter{canvas: res.Canvas, bRect: bRect, overlap: c.cfg.Overlap}
	switch c.cfg.Warp {
	case WarpInverse:
		res.PaintedA = c.paintInverse(&p, newSampler(a), inv, r2.RectFromPoints(corners[:]...), rect.Min)
	case WarpForward:
		res.PaintedA = c.paintForward(&p, newSampler(a), h, rect.Min)
	case WarpNone:
	}

	c.logger.Debug("Composed panorama", "painted_a", res.PaintedA)
	return res, nil
}

// paintInverse visits every canvas pixel inside A's footprint, maps it back
// through inv and samples A there.
func (c *Compositor) paintInverse(p *painter, src *sampler, inv homography.Homography, footprint r2.Rect, origin image.Point) int {
	area := scanArea(footprint, origin, p.canvas.Rect)
	painted := 0
	for cy := area.Min.Y; cy < area.Max.Y; cy++ {
		for cx := area.Min.X; cx < area.Max.X; cx++ {
			ax, ay, w := inv.Apply(float64(cx+origin.X), float64(cy+origin.Y))
			if math.Abs(w) < 1e-12 {
				continue
			}
			col, ok := src.sample(ax/w, ay/w, c.cfg.Sampling)
			if !ok {
				continue
			}
			if p.paint(cx, cy, col) {
				painted++
			}
		}
	}
	return painted
}

// scanArea returns the canvas pixels covered by A's footprint box.
func scanArea(footprint r2.Rect, origin image.Point, canvas image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(footprint.X.Lo))-origin.X, int(math.Floor(footprint.Y.Lo))-origin.Y,
		int(math.Ceil(footprint.X.Hi))-origin.X+1, int(math.Ceil(footprint.Y.Hi))-origin.Y+1,
	)
	return r.Intersect(canvas)
}

// paintForward scatters each A pixel to the canvas pixel containing its
// projection. Magnification leaves unpainted gaps.
func (c *Compositor) paintForward(p *painter, src *sampler, h homography.Homography, origin image.Point) int {
	painted := 0
	for y := range src.h {
		for x := range src.w {
			q, ok := h.Project(homography.Point{X: float64(x), Y: float64(y)})
			if !ok {
				continue
			}
			cx := int(math.Floor(q.X)) - origin.X
			cy := int(math.Floor(q.Y)) - origin.Y
			if !(image.Point{X: cx, Y: cy}).In(p.canvas.Rect) {
				continue
			}
			if p.paint(cx, cy, src.pixel(x, y)) {
				painted++
			}
		}
	}
	return painted
}

// painter writes A samples according to the overlap policy.
type painter struct {
	canvas  *image.NRGBA
	bRect   image.Rectangle
	overlap Overlap
}

// paint writes col at canvas (x, y) and reports whether it was written.
// Fully transparent samples are skipped.
func (p *painter) paint(x, y int, col color.NRGBA) bool {
	if col.A == 0 {
		return false
	}
	inB := (image.Point{X: x, Y: y}).In(p.bRect)
	switch {
	case inB && p.overlap == OverlapB:
		return false
	case inB && p.overlap == OverlapBlend:
		col = average(p.canvas.NRGBAAt(x, y), col)
	case col.A < 255:
		col = over(col, p.canvas.NRGBAAt(x, y))
	}
	p.canvas.SetNRGBA(x, y, col)
	return true
}

func average(a, b color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: uint8((uint16(a.R) + uint16(b.R) + 1) / 2),
		G: uint8((uint16(a.G) + uint16(b.G) + 1) / 2),
		B: uint8((uint16(a.B) + uint16(b.B) + 1) / 2),
		A: uint8((uint16(a.A) + uint16(b.A) + 1) / 2),
	}
}

// over composites src on top of dst, both non-premultiplied.
func over(src, dst color.NRGBA) color.NRGBA {
	sa := float64(src.A) / 255
	da := float64(dst.A) / 255
	oa := sa + da*(1-sa)
	if oa == 0 {
		return color.NRGBA{}
	}
	ch := func(s, d uint8) uint8 {
		v := (float64(s)*sa + float64(d)*da*(1-sa)) / oa
		return uint8(math.Min(255, v+0.5))
	}
	return color.NRGBA{R: ch(src.R, dst.R), G: ch(src.G, dst.G), B: ch(src.B, dst.B), A: uint8(oa*255 + 0.5)}
}
