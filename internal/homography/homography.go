// Package homography estimates planar projective transforms from point
// correspondences and applies them to 2D points.
package homography

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// minW is the smallest homogeneous scale still treated as a finite point.
const minW = 1e-12

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Correspondence pairs a point in image A with the point in image B that
// depicts the same physical location.
type Correspondence struct {
	A Point `json:"a" yaml:"a"`
	B Point `json:"b" yaml:"b"`
}

// Pair zips two index-aligned point lists into correspondences, truncating
// to the shorter list.
func Pair(a, b []Point) []Correspondence {
	n := min(len(a), len(b))
	out := make([]Correspondence, n)
	for i := range n {
		out[i] = Correspondence{A: a[i], B: b[i]}
	}
	return out
}

// Homography is a row-major 3x3 projective transform. Estimated matrices
// have H[2][2] == 1.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// FromRows builds a Homography from a [row][col] matrix.
func FromRows(r [3][3]float64) Homography {
	return Homography{
		r[0][0], r[0][1], r[0][2],
		r[1][0], r[1][1], r[1][2],
		r[2][0], r[2][1], r[2][2],
	}
}

// At returns the entry at row, col.
func (h Homography) At(row, col int) float64 { return h[row*3+col] }

// Rows returns the matrix in [row][col] form.
func (h Homography) Rows() [3][3]float64 {
	return [3][3]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}

// Apply multiplies (x, y, 1) by H and returns the homogeneous result.
func (h Homography) Apply(x, y float64) (float64, float64, float64) {
	return h[0]*x + h[1]*y + h[2],
		h[3]*x + h[4]*y + h[5],
		h[6]*x + h[7]*y + h[8]
}

// Project maps p through H and divides by the third coordinate. ok is false
// when p maps to (or near) the line at infinity.
func (h Homography) Project(p Point) (Point, bool) {
	x, y, w := h.Apply(p.X, p.Y)
	if math.Abs(w) < minW {
		return Point{}, false
	}
	out := Point{X: x / w, Y: y / w}
	if math.IsNaN(out.X) || math.IsNaN(out.Y) || math.IsInf(out.X, 0) || math.IsInf(out.Y, 0) {
		return Point{}, false
	}
	return out, true
}

// Normalize scales H so that H[2][2] == 1. It returns false when H[2][2] is
// too close to zero to divide by.
func (h Homography) Normalize() (Homography, bool) {
	if math.Abs(h[8]) < minW {
		return h, false
	}
	var out Homography
	for i, v := range h {
		out[i] = v / h[8]
	}
	return out, true
}

// Mul returns h*o, i.e. the transform applying o first and then h.
func (h Homography) Mul(o Homography) Homography {
	var out mat.Dense
	out.Mul(h.Dense(), o.Dense())
	var res Homography
	for r := range 3 {
		for c := range 3 {
			res[r*3+c] = out.At(r, c)
		}
	}
	return res
}

// Dense returns H as a gonum matrix.
func (h Homography) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// Inverse returns H^-1, normalized when possible. Singular matrices yield a
// DegenerateInputError.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Homography{}, &DegenerateInputError{Reason: "homography is not invertible", Err: err}
	}
	var out Homography
	for r := range 3 {
		for c := range 3 {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if n, ok := out.Normalize(); ok {
		return n, nil
	}
	return out, nil
}

// IsFinite reports whether every entry is a finite number.
func (h Homography) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// String formats H as three bracketed rows.
func (h Homography) String() string {
	var sb strings.Builder
	for r := range 3 {
		if r > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%12.6g %12.6g %12.6g]", h[r*3], h[r*3+1], h[r*3+2])
	}
	return sb.String()
}
