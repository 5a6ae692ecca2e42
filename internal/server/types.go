package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/panorama/internal/homography"
	"github.com/MeKo-Tech/panorama/internal/stitch"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	stitcher       *stitch.Stitcher
	logger         *slog.Logger
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	captureTimeout time.Duration
	rateLimiter    *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	MaxUploadMB       int64
	TimeoutSec        int
	CaptureTimeoutSec int
	// RequestsPerMinute limits requests per client; 0 disables rate limiting.
	RequestsPerMinute int
	Burst             int
	Stitch            stitch.Config
	Logger            *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type HomographyResponse struct {
	Success   bool               `json:"success"`
	RequestID string             `json:"request_id,omitempty"`
	Estimate  *homography.Result `json:"estimate"`
}

type StitchResponse struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id,omitempty"`
	Result    *stitch.Summary `json:"result"`
	Image     string          `json:"image,omitempty"` // base64 PNG
}

// NewServer creates a panorama server instance.
func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st, err := stitch.New(config.Stitch, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		stitcher:       st,
		logger:         logger,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		captureTimeout: time.Duration(config.CaptureTimeoutSec) * time.Second,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	if s.captureTimeout <= 0 {
		s.captureTimeout = 10 * time.Minute
	}
	if config.RequestsPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute, config.Burst)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/homography", s.corsMiddleware(s.rateLimitMiddleware(s.homographyHandler)))
	mux.HandleFunc("/stitch", s.corsMiddleware(s.rateLimitMiddleware(s.stitchHandler)))
	mux.HandleFunc("/ws/capture", s.captureWebSocketHandler)
}

// Handler returns the routed handler with request IDs attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return requestIDMiddleware(mux)
}
