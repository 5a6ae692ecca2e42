package compose

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// InvalidCanvasError is returned when the transform does not yield a usable
// output canvas. No memory has been allocated when it is returned.
type InvalidCanvasError struct {
	Reason string
	Bounds r2.Rect // raw bounds in B's frame, zero when not computed
	Err    error
}

func (e *InvalidCanvasError) Error() string {
	if e.Bounds == (r2.Rect{}) {
		if e.Err != nil {
			return "invalid canvas: " + e.Reason + ": " + e.Err.Error()
		}
		return "invalid canvas: " + e.Reason
	}
	return fmt.Sprintf("invalid canvas: %s (bounds x=[%g, %g] y=[%g, %g])",
		e.Reason, e.Bounds.X.Lo, e.Bounds.X.Hi, e.Bounds.Y.Lo, e.Bounds.Y.Hi)
}

func (e *InvalidCanvasError) Unwrap() error { return e.Err }
