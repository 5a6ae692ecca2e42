package stitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// Summary is the serializable view of a Result, without pixel data.
type Summary struct {
	ID         string             `json:"id"`
	Estimate   *homography.Result `json:"estimate"`
	Canvas     CanvasSummary      `json:"canvas"`
	Timing     Timing             `json:"timing"`
	DebugFiles []string           `json:"debug_files,omitempty"`
}

// CanvasSummary describes the composed canvas.
type CanvasSummary struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	OriginX  int     `json:"origin_x"`
	OriginY  int     `json:"origin_y"`
	MinX     float64 `json:"min_x"`
	MinY     float64 `json:"min_y"`
	MaxX     float64 `json:"max_x"`
	MaxY     float64 `json:"max_y"`
	PaintedA int     `json:"painted_a"`
}

// Summarize builds the serializable view of res.
func Summarize(res *Result) Summary {
	s := Summary{
		ID:         res.ID,
		Estimate:   res.Estimate,
		Timing:     res.Timing,
		DebugFiles: res.DebugFiles,
	}
	if c := res.Composite; c != nil {
		s.Canvas = CanvasSummary{
			Width:    c.Canvas.Bounds().Dx(),
			Height:   c.Canvas.Bounds().Dy(),
			OriginX:  c.Origin.X,
			OriginY:  c.Origin.Y,
			MinX:     c.Bounds.X.Lo,
			MinY:     c.Bounds.Y.Lo,
			MaxX:     c.Bounds.X.Hi,
			MaxY:     c.Bounds.Y.Hi,
			PaintedA: c.PaintedA,
		}
	}
	return s
}

// ToJSON serializes the summary of res to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(Summarize(res), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EstimateToJSON serializes an estimate to pretty JSON.
func EstimateToJSON(est *homography.Result) (string, error) {
	if est == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(est, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EstimateToText renders the matrix and per-pair residuals for a terminal.
func EstimateToText(est *homography.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Homography (%s, %d correspondences):\n", est.Method, est.Correspondences)
	sb.WriteString(est.H.String())
	sb.WriteString("\n\nResiduals:\n")
	for _, r := range est.Residuals {
		errStr := "inf"
		if !math.IsInf(r.Error, 0) {
			errStr = fmt.Sprintf("%.4f", r.Error)
		}
		fmt.Fprintf(&sb, "  #%-3d cross=(%.3g, %.3g, %.3g) error=%s px\n",
			r.Index, r.Cross[0], r.Cross[1], r.Cross[2], errStr)
	}
	fmt.Fprintf(&sb, "RMSE: %.4f px  max: %.4f px  condition: %.3g\n", est.RMSE, est.MaxError, est.Condition)
	return sb.String()
}

// ToText renders a stitch result for a terminal.
func ToText(res *Result) string {
	var sb strings.Builder
	sb.WriteString(EstimateToText(res.Estimate))
	if c := res.Composite; c != nil {
		b := c.Canvas.Bounds()
		fmt.Fprintf(&sb, "Canvas: %dx%d, B at offset (%d, %d), %d pixels from A\n",
			b.Dx(), b.Dy(), -c.Origin.X, -c.Origin.Y, c.PaintedA)
	}
	for _, f := range res.DebugFiles {
		fmt.Fprintf(&sb, "Debug: %s\n", f)
	}
	return sb.String()
}
