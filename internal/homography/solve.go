package homography

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// unknowns is the number of free entries of H (h00..h21, h22 fixed at 1).
const unknowns = 8

// buildSystem stacks two DLT rows per correspondence into A*h = b.
func buildSystem(corrs []Correspondence) (*mat.Dense, *mat.VecDense) {
	n := len(corrs)
	a := mat.NewDense(2*n, unknowns, nil)
	b := mat.NewVecDense(2*n, nil)
	for i, c := range corrs {
		X, Y := c.A.X, c.A.Y
		x, y := c.B.X, c.B.Y
		r := 2 * i

		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a.Set(r, 0, X)
		a.Set(r, 1, Y)
		a.Set(r, 2, 1)
		a.Set(r, 6, -X*x)
		a.Set(r, 7, -Y*x)
		b.SetVec(r, x)

		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a.Set(r+1, 3, X)
		a.Set(r+1, 4, Y)
		a.Set(r+1, 5, 1)
		a.Set(r+1, 6, -X*y)
		a.Set(r+1, 7, -Y*y)
		b.SetVec(r+1, y)
	}
	return a, b
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteCorrespondences(corrs []Correspondence) bool {
	for _, c := range corrs {
		if !isFinite(c.A.X) || !isFinite(c.A.Y) || !isFinite(c.B.X) || !isFinite(c.B.Y) {
			return false
		}
	}
	return true
}

// finiteSystem reports whether every entry of a and b is finite. Finite but
// huge coordinates overflow in the cross terms of buildSystem.
func finiteSystem(a *mat.Dense, b *mat.VecDense) bool {
	rows, cols := a.Dims()
	for r := range rows {
		if !isFinite(b.AtVec(r)) {
			return false
		}
		for c := range cols {
			if !isFinite(a.At(r, c)) {
				return false
			}
		}
	}
	return true
}

// equilibrate divides every column of a by its largest absolute entry and
// returns the divisors. Column scaling leaves the solution unchanged up to
// the same per-unknown factors, and keeps the rank test independent of the
// pixel scale of the input.
func equilibrate(a *mat.Dense) []float64 {
	rows, cols := a.Dims()
	scale := make([]float64, cols)
	for c := range cols {
		m := 0.0
		for r := range rows {
			m = math.Max(m, math.Abs(a.At(r, c)))
		}
		if m == 0 {
			m = 1
		}
		scale[c] = m
		for r := range rows {
			a.Set(r, c, a.At(r, c)/m)
		}
	}
	return scale
}

// numericalRank returns the condition number of a and the number of
// singular values above tol relative to the largest one.
func numericalRank(a mat.Matrix, tol float64) (float64, int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return math.Inf(1), 0, errors.New("singular value decomposition failed")
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return math.Inf(1), 0, nil
	}
	rank := 0
	for _, v := range values {
		if v > tol*values[0] {
			rank++
		}
	}
	last := values[len(values)-1]
	if last == 0 {
		return math.Inf(1), rank, nil
	}
	return values[0] / last, rank, nil
}

// solveSystem solves a square system exactly and an over-determined one in
// the least-squares sense.
func solveSystem(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, SolveMethod, error) {
	rows, cols := a.Dims()
	var x mat.VecDense
	if rows == cols {
		var lu mat.LU
		lu.Factorize(a)
		if err := lu.SolveVecTo(&x, false, b); err != nil {
			return nil, MethodExact, err
		}
		return &x, MethodExact, nil
	}

	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return nil, MethodLeastSquares, err
	}
	return &x, MethodLeastSquares, nil
}

// packHomography undoes column scaling and places the 8 unknowns into H.
func packHomography(x *mat.VecDense, scale []float64) Homography {
	var h Homography
	for i := range unknowns {
		h[i] = x.AtVec(i) / scale[i]
	}
	h[8] = 1
	return h
}

// isSingular reports whether the 3x3 matrix is numerically rank deficient.
func isSingular(h Homography, tol float64) bool {
	_, rank, err := numericalRank(h.Dense(), tol)
	return err != nil || rank < 3
}
