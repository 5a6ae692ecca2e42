package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{160, 120}
	MediumSize = ImageSize{320, 240}
	LargeSize  = ImageSize{640, 480}
)

// SceneConfig controls the synthetic scene used to cut overlapping views.
type SceneConfig struct {
	Size     ImageSize
	CellSize int // checker cell edge in pixels
	Labels   bool
	FontFace font.Face
}

// DefaultSceneConfig returns a labelled, textured scene of LargeSize.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:     LargeSize,
		CellSize: 40,
		Labels:   true,
		FontFace: basicfont.Face7x13,
	}
}

// GenerateScene renders a scene whose every pixel is distinguishable from its
// neighbours: a colour gradient overlaid with a checkerboard, plus cell labels.
func GenerateScene(cfg SceneConfig) *image.NRGBA {
	w, h := cfg.Size.Width, cfg.Size.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	cell := max(cfg.CellSize, 1)
	for y := range h {
		for x := range w {
			r := uint8(255 * x / max(w-1, 1))
			g := uint8(255 * y / max(h-1, 1))
			b := uint8(64)
			if (x/cell+y/cell)%2 == 0 {
				b = 192
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}

	if cfg.Labels && cfg.FontFace != nil {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: cfg.FontFace,
		}
		ascent := cfg.FontFace.Metrics().Ascent.Ceil()
		for cy := 0; cy < h; cy += cell {
			for cx := 0; cx < w; cx += cell {
				drawer.Dot = fixed.P(cx+2, cy+2+ascent)
				drawer.DrawString(fmt.Sprintf("%d", (cy/cell)*(w/cell+1)+cx/cell))
			}
		}
	}
	return img
}

// CropView copies r out of src into a new zero-origin image.
func CropView(src image.Image, r image.Rectangle) *image.NRGBA {
	return imaging.Crop(src, r)
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// SaveImage saves an image as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CompareImages compares two images and returns true if their mean colour
// difference, relative to the maximum possible, is within tolerance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()
	if bounds1.Size() != bounds2.Size() {
		return false
	}

	var totalDiff, pixelCount float64
	d := bounds2.Min.Sub(bounds1.Min)
	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x+d.X, y+d.Y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (avgDiff / maxDiff) <= tolerance
}

// RegionEqual reports whether the w x h block of got at gotMin matches the
// block of want at wantMin exactly.
func RegionEqual(got image.Image, gotMin image.Point, want image.Image, wantMin image.Point, size image.Point) bool {
	for y := range size.Y {
		for x := range size.X {
			r1, g1, b1, a1 := got.At(gotMin.X+x, gotMin.Y+y).RGBA()
			r2, g2, b2, a2 := want.At(wantMin.X+x, wantMin.Y+y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				return false
			}
		}
	}
	return true
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}
