package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panorama_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panorama_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Stitching metrics
	stitchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panorama_requests_total",
			Help: "Total number of estimation and stitching requests",
		},
		[]string{"type", "status"}, // type: homography, stitch, capture
	)

	stitchProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panorama_processing_duration_seconds",
			Help:    "Processing duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	correspondencesUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panorama_correspondences",
			Help:    "Number of correspondences per estimate",
			Buckets: []float64{4, 5, 6, 8, 10, 15, 20, 50, 100},
		},
	)

	reprojectionRMSE = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panorama_reprojection_rmse_pixels",
			Help:    "Reprojection RMSE of estimated homographies in pixels",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 50},
		},
	)

	canvasPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panorama_canvas_pixels",
			Help:    "Pixel count of composed canvases",
			Buckets: prometheus.ExponentialBuckets(1e4, 4, 10),
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panorama_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panorama_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "panorama_websocket_active_connections",
			Help: "Number of active capture WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panorama_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
