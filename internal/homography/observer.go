package homography

import (
	"log/slog"
)

// Observer receives diagnostics for every successful estimate.
type Observer interface {
	ObserveEstimate(res *Result)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(res *Result)

// ObserveEstimate calls f(res).
func (f ObserverFunc) ObserveEstimate(res *Result) { f(res) }

// LogObserver writes the solved matrix and per-pair residuals as debug records.
type LogObserver struct {
	Logger *slog.Logger
}

// ObserveEstimate logs res.
func (o LogObserver) ObserveEstimate(res *Result) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rows := res.H.Rows()
	logger.Debug("Estimated homography",
		"method", string(res.Method),
		"correspondences", res.Correspondences,
		"condition", res.Condition,
		"row0", rows[0][:],
		"row1", rows[1][:],
		"row2", rows[2][:],
		"rmse", res.RMSE,
		"max_error", res.MaxError)
	for _, r := range res.Residuals {
		logger.Debug("Correspondence residual",
			"index", r.Index,
			"cross", r.Cross[:],
			"error", r.Error)
	}
}
