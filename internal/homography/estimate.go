package homography

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// MinCorrespondences is the number of point pairs needed to determine the
// eight free parameters of a homography.
const MinCorrespondences = 4

// SolveMethod names the linear solver used for an estimate.
type SolveMethod string

const (
	// MethodExact is used when exactly MinCorrespondences pairs are given.
	MethodExact SolveMethod = "exact"
	// MethodLeastSquares is used for over-determined systems.
	MethodLeastSquares SolveMethod = "least_squares"
)

// Config holds numerical tolerances for the estimator.
type Config struct {
	RankTolerance     float64 // relative singular value cutoff for the column-scaled DLT matrix
	SingularTolerance float64 // relative singular value cutoff for the solved 3x3 matrix
}

// DefaultConfig returns tolerances suited to pixel coordinates.
func DefaultConfig() Config {
	return Config{
		RankTolerance:     1e-10,
		SingularTolerance: 1e-12,
	}
}

// Result is an estimated homography together with its quality diagnostics.
type Result struct {
	H               Homography  `json:"h"`
	Method          SolveMethod `json:"method"`
	Correspondences int         `json:"correspondences"`
	// Condition is the 2-norm condition number of the column-scaled system.
	Condition float64    `json:"condition"`
	Residuals []Residual `json:"residuals"`
	// MeanSquaredError is the mean squared reprojection distance in pixels^2.
	MeanSquaredError float64 `json:"mean_squared_error"`
	RMSE             float64 `json:"rmse"`
	MaxError         float64 `json:"max_error"`
}

// Estimator solves for homographies with the direct linear transform.
// It holds no per-call state and is safe for concurrent use.
type Estimator struct {
	cfg      Config
	observer Observer
}

// NewEstimator creates an estimator. A nil observer disables reporting.
func NewEstimator(cfg Config, observer Observer) *Estimator {
	def := DefaultConfig()
	if cfg.RankTolerance <= 0 {
		cfg.RankTolerance = def.RankTolerance
	}
	if cfg.SingularTolerance <= 0 {
		cfg.SingularTolerance = def.SingularTolerance
	}
	return &Estimator{cfg: cfg, observer: observer}
}

// Estimate runs the default estimator on corrs.
func Estimate(corrs []Correspondence) (*Result, error) {
	return NewEstimator(DefaultConfig(), nil).Estimate(corrs)
}

// Estimate computes the homography mapping every A point onto its B point.
// Four pairs are solved exactly, more pairs in the least-squares sense.
func (e *Estimator) Estimate(corrs []Correspondence) (*Result, error) {
	if len(corrs) < MinCorrespondences {
		return nil, &InsufficientCorrespondencesError{Got: len(corrs), Need: MinCorrespondences}
	}

	if !finiteCorrespondences(corrs) {
		return nil, &DegenerateInputError{Reason: "non-finite coordinates"}
	}
	a, b := buildSystem(corrs)
	if !finiteSystem(a, b) {
		return nil, &DegenerateInputError{Reason: "non-finite coordinates"}
	}
	scale := equilibrate(a)

	cond, rank, err := numericalRank(a, e.cfg.RankTolerance)
	if err != nil {
		return nil, &DegenerateInputError{Reason: "cannot factorize coefficient matrix", Err: err}
	}
	if rank < unknowns {
		return nil, &DegenerateInputError{Reason: "coefficient matrix is rank deficient", Rank: rank}
	}

	x, method, err := solveSystem(a, b)
	if err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, &DegenerateInputError{Reason: "coefficient matrix is ill-conditioned", Err: err}
		}
		return nil, &DegenerateInputError{Reason: "linear solve failed", Err: err}
	}

	h := packHomography(x, scale)
	if !h.IsFinite() {
		return nil, &DegenerateInputError{Reason: "solution is not finite"}
	}
	if isSingular(h, e.cfg.SingularTolerance) {
		return nil, &DegenerateInputError{Reason: "estimated homography is singular"}
	}

	res := &Result{
		H:               h,
		Method:          method,
		Correspondences: len(corrs),
		Condition:       cond,
	}
	res.Residuals = Residuals(h, corrs)
	res.MeanSquaredError, res.RMSE, res.MaxError = summarize(res.Residuals)

	if e.observer != nil {
		e.observer.ObserveEstimate(res)
	}
	return res, nil
}
