package homography

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Residual describes how well H explains one correspondence.
type Residual struct {
	Index int `json:"index"`
	// Cross is (H*a) x b for homogeneous a and b; zero for a perfect fit.
	Cross     [3]float64 `json:"cross"`
	Projected Point      `json:"projected"`
	// Error is the distance between the projected A point and B, +Inf when
	// the A point maps to infinity.
	Error float64 `json:"error"`
}

// Residuals computes per-correspondence diagnostics for h.
func Residuals(h Homography, corrs []Correspondence) []Residual {
	out := make([]Residual, len(corrs))
	for i, c := range corrs {
		x, y, w := h.Apply(c.A.X, c.A.Y)
		r := Residual{
			Index: i,
			Cross: [3]float64{
				y - w*c.B.Y,
				w*c.B.X - x,
				x*c.B.Y - y*c.B.X,
			},
			Error: math.Inf(1),
		}
		if p, ok := h.Project(c.A); ok {
			r.Projected = p
			r.Error = math.Hypot(p.X-c.B.X, p.Y-c.B.Y)
		}
		out[i] = r
	}
	return out
}

// ReprojectionError returns the mean squared distance between H*A and B
// over corrs.
func ReprojectionError(h Homography, corrs []Correspondence) float64 {
	mse, _, _ := summarize(Residuals(h, corrs))
	return mse
}

func summarize(res []Residual) (mse, rmse, maxErr float64) {
	if len(res) == 0 {
		return 0, 0, 0
	}
	sq := make([]float64, len(res))
	for i, r := range res {
		sq[i] = r.Error * r.Error
		maxErr = math.Max(maxErr, r.Error)
	}
	mse = stat.Mean(sq, nil)
	return mse, math.Sqrt(mse), maxErr
}

// finite returns nil for NaN and infinities so the value encodes as JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON encodes a non-finite Error as null.
func (r Residual) MarshalJSON() ([]byte, error) {
	type alias Residual
	return json.Marshal(struct {
		alias
		Error *float64 `json:"error"`
	}{alias: alias(r), Error: finite(r.Error)})
}

// MarshalJSON encodes non-finite metrics as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Condition        *float64 `json:"condition"`
		MeanSquaredError *float64 `json:"mean_squared_error"`
		RMSE             *float64 `json:"rmse"`
		MaxError         *float64 `json:"max_error"`
	}{
		alias:            alias(r),
		Condition:        finite(r.Condition),
		MeanSquaredError: finite(r.MeanSquaredError),
		RMSE:             finite(r.RMSE),
		MaxError:         finite(r.MaxError),
	})
}
