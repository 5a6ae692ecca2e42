//nolint:lll
package config

// Config represents the complete configuration for the panorama application.
// It covers all commands (stitch, estimate, batch, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Homography estimation
	Estimator EstimatorConfig `mapstructure:"estimator" yaml:"estimator" json:"estimator"`

	// Canvas compositing
	Compositor CompositorConfig `mapstructure:"compositor" yaml:"compositor" json:"compositor"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// EstimatorConfig contains homography estimation settings.
type EstimatorConfig struct {
	RankTolerance     float64 `mapstructure:"rank_tolerance" yaml:"rank_tolerance" json:"rank_tolerance"`
	SingularTolerance float64 `mapstructure:"singular_tolerance" yaml:"singular_tolerance" json:"singular_tolerance"`
	WarnRMSE          float64 `mapstructure:"warn_rmse" yaml:"warn_rmse" json:"warn_rmse"`
}

// CompositorConfig contains compositing settings.
type CompositorConfig struct {
	Warp            string `mapstructure:"warp" yaml:"warp" json:"warp"`
	Sampling        string `mapstructure:"sampling" yaml:"sampling" json:"sampling"`
	Overlap         string `mapstructure:"overlap" yaml:"overlap" json:"overlap"`
	Background      string `mapstructure:"background" yaml:"background" json:"background"`
	MaxCanvasPixels int    `mapstructure:"max_canvas_pixels" yaml:"max_canvas_pixels" json:"max_canvas_pixels"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	Format   string `mapstructure:"format" yaml:"format" json:"format"`
	File     string `mapstructure:"file" yaml:"file" json:"file"`
	DebugDir string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `mapstructure:"host" yaml:"host" json:"host"`
	Port              int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin        string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec        int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CaptureTimeoutSec int    `mapstructure:"capture_timeout_sec" yaml:"capture_timeout_sec" json:"capture_timeout_sec"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int    `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
