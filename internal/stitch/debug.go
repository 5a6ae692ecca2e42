package stitch

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/panorama/internal/compose"
	"github.com/MeKo-Tech/panorama/internal/homography"
)

const markerRadius = 4.0

// debugInput bundles what the overlays need from one stitch.
type debugInput struct {
	id    string
	a, b  image.Image
	corrs []homography.Correspondence
	est   *homography.Result
	comp  *compose.Result
}

// dumpDebug writes the correspondence and footprint overlays for one stitch
// and returns the written paths.
func dumpDebug(dir string, in debugInput) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}

	var files []string
	pointsPath := filepath.Join(dir, fmt.Sprintf("pair_%s_points.png", in.id))
	if err := drawCorrespondences(in.a, in.b, in.corrs).SavePNG(pointsPath); err != nil {
		return files, fmt.Errorf("failed to save %s: %w", pointsPath, err)
	}
	files = append(files, pointsPath)

	dc, err := drawFootprint(in.a.Bounds().Size(), in.corrs, in.est, in.comp)
	if err != nil {
		return files, err
	}
	footprintPath := filepath.Join(dir, fmt.Sprintf("pair_%s_footprint.png", in.id))
	if err := dc.SavePNG(footprintPath); err != nil {
		return files, fmt.Errorf("failed to save %s: %w", footprintPath, err)
	}
	files = append(files, footprintPath)
	return files, nil
}

// markerColors spreads n hues evenly so neighbouring pairs stay distinguishable.
func markerColors(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		out[i] = colorful.Hsv(float64(i)*360/float64(max(n, 1)), 0.9, 0.95)
	}
	return out
}

// drawCorrespondences places A and B side by side and marks each pair with
// a numbered dot in both images, joined by a line.
func drawCorrespondences(a, b image.Image, corrs []homography.Correspondence) *gg.Context {
	ab, bb := a.Bounds(), b.Bounds()
	dc := gg.NewContext(ab.Dx()+bb.Dx(), max(ab.Dy(), bb.Dy()))
	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(a, -ab.Min.X, -ab.Min.Y)
	dc.DrawImage(b, ab.Dx()-bb.Min.X, -bb.Min.Y)

	offset := float64(ab.Dx())
	colors := markerColors(len(corrs))
	for i, c := range corrs {
		bx := c.B.X + offset
		dc.SetColor(colors[i])
		dc.SetLineWidth(1)
		dc.DrawLine(c.A.X, c.A.Y, bx, c.B.Y)
		dc.Stroke()
		dc.DrawCircle(c.A.X, c.A.Y, markerRadius)
		dc.Fill()
		dc.DrawCircle(bx, c.B.Y, markerRadius)
		dc.Fill()

		label := strconv.Itoa(i)
		dc.SetColor(color.Black)
		dc.DrawString(label, c.A.X+markerRadius+1, c.A.Y-markerRadius-1)
		dc.DrawString(label, bx+markerRadius+1, c.B.Y-markerRadius-1)
	}
	return dc
}

// drawFootprint outlines where A's border lands on the composed canvas.
// B points are drawn as circles and the projected A points as crosses, so
// the reprojection error is visible as their offset.
func drawFootprint(sizeA image.Point, corrs []homography.Correspondence, est *homography.Result, comp *compose.Result) (*gg.Context, error) {
	corners, err := compose.ProjectCorners(est.H, sizeA)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForImage(comp.Canvas)
	ox, oy := float64(comp.Origin.X), float64(comp.Origin.Y)

	dc.SetColor(color.NRGBA{R: 255, G: 0, B: 255, A: 255})
	dc.SetLineWidth(2)
	dc.MoveTo(corners[0].X-ox, corners[0].Y-oy)
	for _, c := range corners[1:] {
		dc.LineTo(c.X-ox, c.Y-oy)
	}
	dc.ClosePath()
	dc.Stroke()

	colors := markerColors(len(corrs))
	dc.SetLineWidth(1.5)
	for i, c := range corrs {
		dc.SetColor(colors[i])
		dc.DrawCircle(c.B.X-ox, c.B.Y-oy, markerRadius)
		dc.Stroke()
		if i >= len(est.Residuals) || math.IsInf(est.Residuals[i].Error, 0) {
			continue
		}
		p := est.Residuals[i].Projected
		px, py := p.X-ox, p.Y-oy
		dc.DrawLine(px-markerRadius, py-markerRadius, px+markerRadius, py+markerRadius)
		dc.DrawLine(px-markerRadius, py+markerRadius, px+markerRadius, py-markerRadius)
		dc.Stroke()
	}
	return dc, nil
}
