package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/panorama/internal/compose"
	"github.com/MeKo-Tech/panorama/internal/homography"
	"github.com/MeKo-Tech/panorama/internal/stitch"
	"github.com/MeKo-Tech/panorama/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	est := homography.DefaultConfig()
	comp := compose.DefaultConfig()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Estimator: EstimatorConfig{
			RankTolerance:     est.RankTolerance,
			SingularTolerance: est.SingularTolerance,
			WarnRMSE:          stitch.DefaultConfig().WarnRMSE,
		},
		Compositor: CompositorConfig{
			Warp:            string(comp.Warp),
			Sampling:        string(comp.Sampling),
			Overlap:         string(comp.Overlap),
			Background:      utils.FormatColor(comp.Background),
			MaxCanvasPixels: comp.MaxCanvasPixels,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        60,
			ShutdownTimeout:   10,
			CaptureTimeoutSec: 600,
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Estimator.RankTolerance < 0 {
		return fmt.Errorf("invalid estimator.rank_tolerance: %g (must not be negative)", c.Estimator.RankTolerance)
	}
	if c.Estimator.SingularTolerance < 0 {
		return fmt.Errorf("invalid estimator.singular_tolerance: %g (must not be negative)", c.Estimator.SingularTolerance)
	}
	if c.Estimator.WarnRMSE < 0 {
		return fmt.Errorf("invalid estimator.warn_rmse: %g (must not be negative)", c.Estimator.WarnRMSE)
	}

	if _, err := c.toComposeConfig(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.CaptureTimeoutSec <= 0 {
		return fmt.Errorf("invalid capture timeout: %d (must be positive)", c.Server.CaptureTimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("invalid rate limit: %d/min burst %d (must not be negative)", c.Server.RequestsPerMinute, c.Server.Burst)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToStitchConfig converts the config to the stitcher configuration.
func (c *Config) ToStitchConfig() (stitch.Config, error) {
	comp, err := c.toComposeConfig()
	if err != nil {
		return stitch.Config{}, err
	}
	return stitch.Config{
		Estimator:  c.ToEstimatorConfig(),
		Compositor: comp,
		WarnRMSE:   c.Estimator.WarnRMSE,
		DebugDir:   c.Output.DebugDir,
	}, nil
}

// ToEstimatorConfig converts to homography.Config.
func (c *Config) ToEstimatorConfig() homography.Config {
	return homography.Config{
		RankTolerance:     c.Estimator.RankTolerance,
		SingularTolerance: c.Estimator.SingularTolerance,
	}
}

// ToBatchConfig converts to stitch.BatchConfig without a progress callback.
func (c *Config) ToBatchConfig() stitch.BatchConfig {
	return stitch.BatchConfig{
		MaxWorkers:      c.Batch.Workers,
		ContinueOnError: c.Batch.ContinueOnError,
	}
}

// toComposeConfig parses the textual compositor settings.
func (c *Config) toComposeConfig() (compose.Config, error) {
	cfg := compose.DefaultConfig()
	var err error
	if c.Compositor.Warp != "" {
		if cfg.Warp, err = compose.ParseWarpMode(c.Compositor.Warp); err != nil {
			return cfg, fmt.Errorf("invalid compositor.warp: %w", err)
		}
	}
	if c.Compositor.Sampling != "" {
		if cfg.Sampling, err = compose.ParseSampling(c.Compositor.Sampling); err != nil {
			return cfg, fmt.Errorf("invalid compositor.sampling: %w", err)
		}
	}
	if c.Compositor.Overlap != "" {
		if cfg.Overlap, err = compose.ParseOverlap(c.Compositor.Overlap); err != nil {
			return cfg, fmt.Errorf("invalid compositor.overlap: %w", err)
		}
	}
	if c.Compositor.Background != "" {
		if cfg.Background, err = utils.ParseColor(c.Compositor.Background); err != nil {
			return cfg, fmt.Errorf("invalid compositor.background: %w", err)
		}
	}
	if c.Compositor.MaxCanvasPixels < 0 {
		return cfg, fmt.Errorf("invalid compositor.max_canvas_pixels: %d (must not be negative)", c.Compositor.MaxCanvasPixels)
	}
	if c.Compositor.MaxCanvasPixels > 0 {
		cfg.MaxCanvasPixels = c.Compositor.MaxCanvasPixels
	}
	return cfg, nil
}
