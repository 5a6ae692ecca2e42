package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/server"
)

func (c *cli) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the stitching API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints for
homography estimation and panorama stitching.

The server provides the following endpoints:
  POST /homography  - Estimate a homography from a points document
  POST /stitch      - Stitch two uploaded images (multipart form)
  GET  /ws/capture  - Interactive click capture over WebSocket
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  panorama serve
  panorama serve --port 8080
  panorama serve --host 0.0.0.0 --port 3000 --requests-per-minute 30`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.config()
			sc, err := cfg.ToStitchConfig()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			srv, err := server.NewServer(server.Config{
				Host:              cfg.Server.Host,
				Port:              cfg.Server.Port,
				CORSOrigin:        cfg.Server.CORSOrigin,
				MaxUploadMB:       int64(cfg.Server.MaxUploadMB),
				TimeoutSec:        cfg.Server.TimeoutSec,
				CaptureTimeoutSec: cfg.Server.CaptureTimeoutSec,
				RequestsPerMinute: cfg.Server.RequestsPerMinute,
				Burst:             cfg.Server.Burst,
				Stitch:            sc,
				Logger:            c.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()
			return c.runServer(ctx, cfg.Server, srv.Handler())
		},
	}

	d := config.DefaultConfig().Server
	cmd.Flags().StringP("host", "H", d.Host, "server host")
	cmd.Flags().IntP("port", "p", d.Port, "server port")
	cmd.Flags().String("cors-origin", d.CORSOrigin, "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", d.MaxUploadMB, "maximum upload size in MB")
	cmd.Flags().Int("timeout", d.TimeoutSec, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", d.ShutdownTimeout, "shutdown timeout in seconds")
	cmd.Flags().Int("capture-timeout", d.CaptureTimeoutSec, "interactive capture session timeout in seconds")
	cmd.Flags().Int("requests-per-minute", d.RequestsPerMinute, "maximum requests per minute per client (0 disables rate limiting)")
	cmd.Flags().Int("burst", d.Burst, "rate limit burst size")

	bindings := map[string]string{
		"server.host":                "host",
		"server.port":                "port",
		"server.cors_origin":         "cors-origin",
		"server.max_upload_mb":       "max-upload-size",
		"server.timeout_sec":         "timeout",
		"server.shutdown_timeout":    "shutdown-timeout",
		"server.capture_timeout_sec": "capture-timeout",
		"server.requests_per_minute": "requests-per-minute",
		"server.burst":               "burst",
	}
	c.addCompositorFlags(cmd, bindings)
	c.bind(cmd, bindings)
	return cmd
}

// runServer serves handler until ctx is done, then shuts down gracefully.
func (c *cli) runServer(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("Starting panorama server", "host", cfg.Host, "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("Received shutdown signal")
	}

	c.logger.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	c.logger.Info("Graceful shutdown completed")
	return nil
}
