package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/compose"
	"github.com/MeKo-Tech/panorama/internal/homography"
	"github.com/MeKo-Tech/panorama/internal/stitch"
	"github.com/MeKo-Tech/panorama/internal/utils"
	"github.com/MeKo-Tech/panorama/internal/version"
)

const (
	formatPNG  = "png"
	formatJPEG = "jpeg"
	formatJSON = "json"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// homographyHandler estimates a homography from a points document posted
// as the request body (YAML or JSON).
func (s *Server) homographyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			s.writeErrorResponse(w, r, "Request too large", "too_large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, "Failed to read request body", "invalid_request", http.StatusBadRequest)
		return
	}
	corrs, err := capture.Parse(data)
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "invalid_points", http.StatusBadRequest)
		return
	}

	start := time.Now()
	est, err := s.stitcher.Estimate(r.Context(), capture.List(corrs))
	stitchProcessingDuration.WithLabelValues("homography").Observe(time.Since(start).Seconds())
	if err != nil {
		stitchRequestsTotal.WithLabelValues("homography", "error").Inc()
		s.writeProcessingError(w, r, err)
		return
	}
	stitchRequestsTotal.WithLabelValues("homography", "success").Inc()
	observeEstimate(est)

	s.writeJSON(w, http.StatusOK, HomographyResponse{
		Success:   true,
		RequestID: requestID(r.Context()),
		Estimate:  est,
	})
}

// stitchHandler composes two uploaded images. The multipart form carries
// image_a, image_b and points, either as a file or as a text field. The
// compositor settings warp, sampling, overlap and background may be given as
// form fields or query parameters. The response is the panorama image
// (format=png, the default, or jpeg) or the JSON summary with the panorama
// as base64 PNG (format=json).
func (s *Server) stitchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		if isTooLarge(err) {
			s.writeErrorResponse(w, r, "Request too large", "too_large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, r, "Failed to parse form data", "invalid_request", http.StatusBadRequest)
		return
	}

	format := strings.ToLower(r.FormValue("format"))
	switch format {
	case "":
		format = formatPNG
	case "jpg":
		format = formatJPEG
	case formatPNG, formatJPEG, formatJSON:
	default:
		s.writeErrorResponse(w, r, "Unsupported format: "+format, "invalid_request", http.StatusBadRequest)
		return
	}

	a, err := formImage(r, "image_a")
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "invalid_image", http.StatusBadRequest)
		return
	}
	b, err := formImage(r, "image_b")
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "invalid_image", http.StatusBadRequest)
		return
	}
	points, err := formPoints(r)
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "invalid_points", http.StatusBadRequest)
		return
	}
	st, err := s.requestStitcher(r)
	if err != nil {
		s.writeErrorResponse(w, r, err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := st.Stitch(ctx, a, b, points)
	stitchProcessingDuration.WithLabelValues("stitch").Observe(time.Since(start).Seconds())
	if err != nil {
		stitchRequestsTotal.WithLabelValues("stitch", "error").Inc()
		s.writeProcessingError(w, r, err)
		return
	}
	stitchRequestsTotal.WithLabelValues("stitch", "success").Inc()
	observeEstimate(res.Estimate)
	bounds := res.Composite.Canvas.Bounds()
	canvasPixels.Observe(float64(bounds.Dx() * bounds.Dy()))

	if format == formatJSON {
		var buf bytes.Buffer
		if err := utils.EncodeImage(&buf, res.Composite.Canvas, formatPNG); err != nil {
			s.writeErrorResponse(w, r, "Failed to encode panorama", "processing_error", http.StatusInternalServerError)
			return
		}
		sum := stitch.Summarize(res)
		s.writeJSON(w, http.StatusOK, StitchResponse{
			Success:   true,
			RequestID: requestID(r.Context()),
			Result:    &sum,
			Image:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
		return
	}

	w.Header().Set("Content-Type", "image/"+format)
	w.Header().Set("X-Panorama-Origin", fmt.Sprintf("%d,%d", res.Composite.Origin.X, res.Composite.Origin.Y))
	w.Header().Set("X-Panorama-RMSE", strconv.FormatFloat(res.Estimate.RMSE, 'g', 6, 64))
	if err := utils.EncodeImage(w, res.Composite.Canvas, format); err != nil {
		s.logger.Error("Failed to encode panorama", "error", err, "request_id", requestID(r.Context()))
	}
}

func (s *Server) maxUploadBytes() int64 { return s.maxUploadMB * 1024 * 1024 }

// isTooLarge reports whether err comes from exceeding the upload limit.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}

// requestStitcher returns the shared stitcher, or a copy configured with the
// compositor overrides present in the request.
func (s *Server) requestStitcher(r *http.Request) (*stitch.Stitcher, error) {
	cfg := s.stitcher.Config()
	changed := false
	var err error
	if v := r.FormValue("warp"); v != "" {
		if cfg.Compositor.Warp, err = compose.ParseWarpMode(v); err != nil {
			return nil, err
		}
		changed = true
	}
	if v := r.FormValue("sampling"); v != "" {
		if cfg.Compositor.Sampling, err = compose.ParseSampling(v); err != nil {
			return nil, err
		}
		changed = true
	}
	if v := r.FormValue("overlap"); v != "" {
		if cfg.Compositor.Overlap, err = compose.ParseOverlap(v); err != nil {
			return nil, err
		}
		changed = true
	}
	if v := r.FormValue("background"); v != "" {
		if cfg.Compositor.Background, err = utils.ParseColor(v); err != nil {
			return nil, err
		}
		changed = true
	}
	if !changed {
		return s.stitcher, nil
	}
	// Debug dumps are a server-wide setting and stay with the shared stitcher.
	cfg.DebugDir = ""
	return stitch.New(cfg, s.logger)
}

func formImage(r *http.Request, field string) (image.Image, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("no %s file provided", field)
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, err := utils.DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return img, nil
}

// formPoints reads the points document from a "points" file part or field.
func formPoints(r *http.Request) (capture.Provider, error) {
	var data []byte
	file, _, err := r.FormFile("points")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		if data, err = io.ReadAll(file); err != nil {
			return nil, fmt.Errorf("failed to read points: %w", err)
		}
	case errors.Is(err, http.ErrMissingFile):
		data = []byte(r.FormValue("points"))
	default:
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("no points provided")
	}
	corrs, err := capture.Parse(data)
	if err != nil {
		return nil, err
	}
	return capture.List(corrs), nil
}

func observeEstimate(est *homography.Result) {
	correspondencesUsed.Observe(float64(est.Correspondences))
	reprojectionRMSE.Observe(est.RMSE)
}

// writeProcessingError maps estimation and compositing errors to statuses.
func (s *Server) writeProcessingError(w http.ResponseWriter, r *http.Request, err error) {
	var canvasErr *compose.InvalidCanvasError
	switch {
	case errors.As(err, &canvasErr):
		s.writeErrorResponse(w, r, err.Error(), "invalid_canvas", http.StatusUnprocessableEntity)
	case errors.Is(err, homography.ErrDegenerateInput):
		s.writeErrorResponse(w, r, err.Error(), "degenerate_input", http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, r, "Processing timed out", "timeout", http.StatusGatewayTimeout)
	default:
		s.writeErrorResponse(w, r, fmt.Sprintf("Processing failed: %v", err), "processing_error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message, errorType string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID(r.Context()),
	})
}
