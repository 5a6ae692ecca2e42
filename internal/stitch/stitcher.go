// Package stitch runs the full panorama pipeline: correspondences from a
// provider, homography estimation and compositing.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/common"
	"github.com/MeKo-Tech/panorama/internal/compose"
	"github.com/MeKo-Tech/panorama/internal/homography"
)

// Config holds configuration for the stitcher and its components.
type Config struct {
	Estimator  homography.Config
	Compositor compose.Config
	// WarnRMSE logs a warning when the reprojection RMSE exceeds it; <= 0 disables.
	WarnRMSE float64
	// DebugDir receives correspondence and footprint overlays when set.
	DebugDir string
}

// DefaultConfig returns a default stitcher config with component defaults.
func DefaultConfig() Config {
	return Config{
		Estimator:  homography.DefaultConfig(),
		Compositor: compose.DefaultConfig(),
		WarnRMSE:   2.0,
	}
}

// Timing records how long each phase took.
type Timing struct {
	CaptureNs  int64 `json:"capture_ns"`
	EstimateNs int64 `json:"estimate_ns"`
	ComposeNs  int64 `json:"compose_ns"`
	TotalNs    int64 `json:"total_ns"`
}

// Result is the output of one stitch.
type Result struct {
	ID         string
	Estimate   *homography.Result
	Composite  *compose.Result
	Timing     Timing
	DebugFiles []string
}

// Stitcher combines an estimator and a compositor. It is safe for
// concurrent use on independent image pairs.
type Stitcher struct {
	cfg        Config
	estimator  *homography.Estimator
	compositor *compose.Compositor
	logger     *slog.Logger
}

// New creates a stitcher. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) (*Stitcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compositor := compose.NewCompositor(cfg.Compositor, logger)
	if err := compositor.Config().Validate(); err != nil {
		return nil, fmt.Errorf("invalid compositor config: %w", err)
	}
	return &Stitcher{
		cfg:        cfg,
		estimator:  homography.NewEstimator(cfg.Estimator, homography.LogObserver{Logger: logger}),
		compositor: compositor,
		logger:     logger,
	}, nil
}

// Config returns the stitcher configuration.
func (s *Stitcher) Config() Config { return s.cfg }

// Estimate collects correspondences from p and estimates the homography
// mapping image A into image B's frame.
func (s *Stitcher) Estimate(ctx context.Context, p capture.Provider) (*homography.Result, error) {
	corrs, err := s.collect(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.estimate(corrs)
}

// Stitch estimates the homography from p and composes a and b with it.
// Estimation errors prevent compositing.
func (s *Stitcher) Stitch(ctx context.Context, a, b image.Image, p capture.Provider) (*Result, error) {
	if a == nil || b == nil {
		return nil, errors.New("both images are required")
	}
	res := &Result{ID: uuid.NewString()}
	logger := s.logger.With("stitch_id", res.ID)
	timer := common.NewNamedTimer("stitch")

	corrs, err := s.collect(ctx, p)
	if err != nil {
		return nil, err
	}
	res.Timing.CaptureNs = timer.Lap("capture").Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	est, err := s.estimate(corrs)
	if err != nil {
		logger.Warn("Homography estimation failed", "correspondences", len(corrs), "error", err)
		return nil, err
	}
	res.Estimate = est
	res.Timing.EstimateNs = timer.Lap("estimate").Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp, err := s.compositor.Compose(a, b, est.H)
	if err != nil {
		return nil, fmt.Errorf("compose panorama: %w", err)
	}
	res.Composite = comp
	res.Timing.ComposeNs = timer.Lap("compose").Nanoseconds()
	res.Timing.TotalNs = timer.Total().Nanoseconds()
	logger.Debug("Stitch phases", "timing", timer.String())

	if s.cfg.DebugDir != "" {
		files, err := dumpDebug(s.cfg.DebugDir, debugInput{
			id: res.ID, a: a, b: b, corrs: corrs, est: est, comp: comp,
		})
		if err != nil {
			logger.Warn("Failed to write debug overlays", "dir", s.cfg.DebugDir, "error", err)
		}
		res.DebugFiles = files
	}

	logger.Info("Stitched panorama",
		"correspondences", est.Correspondences,
		"method", string(est.Method),
		"rmse", est.RMSE,
		"width", comp.Canvas.Bounds().Dx(),
		"height", comp.Canvas.Bounds().Dy(),
		"painted_a", comp.PaintedA,
		"total_ms", time.Duration(res.Timing.TotalNs).Milliseconds())
	return res, nil
}

func (s *Stitcher) collect(ctx context.Context, p capture.Provider) ([]homography.Correspondence, error) {
	if p == nil {
		return nil, errors.New("no correspondence provider")
	}
	corrs, err := p.Correspondences(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect correspondences: %w", err)
	}
	return corrs, nil
}

func (s *Stitcher) estimate(corrs []homography.Correspondence) (*homography.Result, error) {
	est, err := s.estimator.Estimate(corrs)
	if err != nil {
		return nil, fmt.Errorf("estimate homography: %w", err)
	}
	if s.cfg.WarnRMSE > 0 && est.RMSE > s.cfg.WarnRMSE {
		s.logger.Warn("Correspondences fit poorly",
			"rmse", est.RMSE,
			"max_error", est.MaxError,
			"threshold", s.cfg.WarnRMSE)
	}
	return est, nil
}
