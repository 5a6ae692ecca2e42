package testutil

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// PairFixture is a pair of overlapping views cut from one scene, together
// with matching points inside the overlap.
type PairFixture struct {
	Scene   *image.NRGBA
	A, B    *image.NRGBA
	RectA   image.Rectangle // view of A in scene coordinates
	RectB   image.Rectangle // view of B in scene coordinates
	PointsA []homography.Point
	PointsB []homography.Point
}

// NewTranslatedPair cuts views rectA and rectB out of a default scene. The
// true homography from A to B is a translation by rectA.Min - rectB.Min.
func NewTranslatedPair(rectA, rectB image.Rectangle) PairFixture {
	cfg := DefaultSceneConfig()
	union := rectA.Union(rectB)
	cfg.Size = ImageSize{Width: union.Max.X, Height: union.Max.Y}
	scene := GenerateScene(cfg)

	fx := PairFixture{
		Scene: scene,
		A:     CropView(scene, rectA),
		B:     CropView(scene, rectB),
		RectA: rectA,
		RectB: rectB,
	}

	overlap := rectA.Intersect(rectB).Inset(5)
	if overlap.Empty() {
		return fx
	}
	cx := (overlap.Min.X + overlap.Max.X) / 2
	cy := (overlap.Min.Y + overlap.Max.Y) / 2
	scenePts := []image.Point{
		overlap.Min,
		{X: overlap.Max.X - 1, Y: overlap.Min.Y},
		{X: overlap.Max.X - 1, Y: overlap.Max.Y - 1},
		{X: overlap.Min.X, Y: overlap.Max.Y - 1},
		{X: cx, Y: cy},
	}
	for _, p := range scenePts {
		a := p.Sub(rectA.Min)
		b := p.Sub(rectB.Min)
		fx.PointsA = append(fx.PointsA, homography.Point{X: float64(a.X), Y: float64(a.Y)})
		fx.PointsB = append(fx.PointsB, homography.Point{X: float64(b.X), Y: float64(b.Y)})
	}
	return fx
}

// Truth returns the translation mapping A's frame onto B's.
func (fx PairFixture) Truth() homography.Homography {
	d := fx.RectA.Min.Sub(fx.RectB.Min)
	return homography.FromRows([3][3]float64{
		{1, 0, float64(d.X)},
		{0, 1, float64(d.Y)},
		{0, 0, 1},
	})
}

// FixturePaths locates a fixture written to disk.
type FixturePaths struct {
	ImageA string
	ImageB string
	Points string
}

// WriteFixture saves both views as PNG and the points as a YAML
// correspondence file in dir.
func WriteFixture(t *testing.T, dir string, fx PairFixture) FixturePaths {
	t.Helper()

	paths := FixturePaths{
		ImageA: filepath.Join(dir, "a.png"),
		ImageB: filepath.Join(dir, "b.png"),
		Points: filepath.Join(dir, "points.yaml"),
	}
	SaveImage(t, fx.A, paths.ImageA)
	SaveImage(t, fx.B, paths.ImageB)
	WritePointsFile(t, paths.Points, fx.PointsA, fx.PointsB)
	return paths
}

// WritePointsFile writes index-aligned point lists in the image_a/image_b
// layout accepted by the correspondence file loader.
func WritePointsFile(t *testing.T, path string, a, b []homography.Point) {
	t.Helper()

	doc := struct {
		ImageA []homography.Point `yaml:"image_a"`
		ImageB []homography.Point `yaml:"image_b"`
	}{ImageA: a, ImageB: b}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err, "Failed to marshal points")

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, data, 0o600), "Failed to write %s", path)
}
