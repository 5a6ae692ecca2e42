package compose

import (
	"image"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

const (
	// maxCoord bounds canvas coordinates so they convert to int safely.
	maxCoord = 1 << 30
	// snapEps absorbs floating point noise when snapping to whole pixels, so
	// a corner estimated at 90.0000000001 does not add a row.
	snapEps = 1e-6
)

// Corners returns the corners of a w x h image in the order
// (0,0), (w,0), (w,h), (0,h).
func Corners(size image.Point) [4]homography.Point {
	w, h := float64(size.X), float64(size.Y)
	return [4]homography.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// ProjectCorners maps the corners of an image of the given size through h.
// It fails when a corner maps to infinity or when the corners straddle the
// horizon line, since the footprint is then unbounded.
func ProjectCorners(h homography.Homography, size image.Point) ([4]r2.Point, error) {
	var out [4]r2.Point
	sign := 0.0
	for i, c := range Corners(size) {
		_, _, w := h.Apply(c.X, c.Y)
		if sign == 0 {
			sign = math.Copysign(1, w)
		} else if math.Copysign(1, w) != sign {
			return out, &InvalidCanvasError{Reason: "image A crosses the horizon of the transform"}
		}
		p, ok := h.Project(c)
		if !ok {
			return out, &InvalidCanvasError{Reason: "a corner of image A maps to infinity"}
		}
		out[i] = r2.Point{X: p.X, Y: p.Y}
	}
	return out, nil
}

// CanvasBounds returns the smallest box in B's frame containing B's
// rectangle and the projected corners of A.
func CanvasBounds(h homography.Homography, sizeA, sizeB image.Point) (r2.Rect, error) {
	corners, err := ProjectCorners(h, sizeA)
	if err != nil {
		return r2.Rect{}, err
	}
	return canvasBounds(corners, sizeB), nil
}

func canvasBounds(corners [4]r2.Point, sizeB image.Point) r2.Rect {
	bounds := r2.Rect{
		X: r1.Interval{Lo: 0, Hi: float64(sizeB.X)},
		Y: r1.Interval{Lo: 0, Hi: float64(sizeB.Y)},
	}
	for _, c := range corners {
		bounds = bounds.AddPoint(c)
	}
	return bounds
}

// snapBounds expands raw bounds outward to whole pixels and validates the
// resulting canvas size against maxPixels (<= 0 disables the limit).
func snapBounds(raw r2.Rect, maxPixels int) (image.Rectangle, error) {
	for _, v := range []float64{raw.X.Lo, raw.X.Hi, raw.Y.Lo, raw.Y.Hi} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, &InvalidCanvasError{Reason: "bounds are not finite", Bounds: raw}
		}
		if math.Abs(v) > maxCoord {
			return image.Rectangle{}, &InvalidCanvasError{Reason: "bounds exceed the addressable range", Bounds: raw}
		}
	}

	x0, x1 := math.Floor(raw.X.Lo+snapEps), math.Ceil(raw.X.Hi-snapEps)
	y0, y1 := math.Floor(raw.Y.Lo+snapEps), math.Ceil(raw.Y.Hi-snapEps)
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, &InvalidCanvasError{Reason: "canvas has no area", Bounds: raw}
	}
	if maxPixels > 0 && w*h > float64(maxPixels) {
		return image.Rectangle{}, &InvalidCanvasError{Reason: "canvas exceeds the pixel limit", Bounds: raw}
	}
	return image.Rect(int(x0), int(y0), int(x1), int(y1)), nil
}
