package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panorama/internal/config"
	"github.com/MeKo-Tech/panorama/internal/testutil"
)

func TestStitchCommand(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))
	out := filepath.Join(dir, "pano.png")

	output, err := executeCommand(t, "stitch", paths.ImageA, paths.ImageB, "--points", paths.Points, "-o", out)
	require.NoError(t, err, output)
	assert.Contains(t, output, "Canvas: 320x170")
	assert.Contains(t, output, "Panorama written to "+out)

	img := testutil.LoadImage(t, out)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 170, img.Bounds().Dy())
}

func TestStitchCommand_JSONReport(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))
	report := filepath.Join(dir, "report.json")

	_, err := executeCommand(t, "stitch", paths.ImageA, paths.ImageB, "-p", paths.Points,
		"-o", filepath.Join(dir, "pano.png"), "--format", "json", "--report", report,
		"--debug-dir", filepath.Join(dir, "debug"))
	require.NoError(t, err)

	data, err := os.ReadFile(report) //nolint:gosec // test file
	require.NoError(t, err)
	var sum struct {
		Canvas struct {
			Width, Height int
		} `json:"canvas"`
		DebugFiles []string `json:"debug_files"`
	}
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, 320, sum.Canvas.Width)
	assert.Equal(t, 170, sum.Canvas.Height)
	assert.Len(t, sum.DebugFiles, 2)
}

func TestStitchCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no points", []string{"stitch", paths.ImageA, paths.ImageB}, "no points file"},
		{"one image", []string{"stitch", paths.ImageA, "-p", paths.Points}, "accepts 2 arg(s)"},
		{"bad extension", []string{"stitch", "a.txt", paths.ImageB, "-p", paths.Points}, "unsupported image format"},
		{"bad warp", []string{"stitch", paths.ImageA, paths.ImageB, "-p", paths.Points, "--warp", "sideways"}, "compositor.warp"},
		{"bad format", []string{"stitch", paths.ImageA, paths.ImageB, "-p", paths.Points, "--format", "csv"}, "invalid output format"},
		{"missing image", []string{"stitch", filepath.Join(dir, "nope.png"), paths.ImageB, "-p", paths.Points,
			"-o", filepath.Join(dir, "o.png")}, "image A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEstimateCommand(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))

	output, err := executeCommand(t, "estimate", "--points", paths.Points)
	require.NoError(t, err)
	assert.Contains(t, output, "Homography (least_squares, 5 correspondences)")
	assert.Contains(t, output, "RMSE:")

	output, err = executeCommand(t, "estimate", "--points", paths.Points, "--format", "json")
	require.NoError(t, err)
	var est struct {
		Method          string     `json:"method"`
		Correspondences int        `json:"correspondences"`
		H               [9]float64 `json:"h"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &est))
	assert.Equal(t, "least_squares", est.Method)
	assert.InDelta(t, 120.0, est.H[2], 1e-9)
	assert.InDelta(t, 20.0, est.H[5], 1e-9)
}

func TestEstimateCommand_Degenerate(t *testing.T) {
	dir := t.TempDir()
	points := testutil.WriteFile(t, dir, "line.yaml",
		"image_a: [[0,0],[1,1],[2,2],[3,3],[4,4]]\nimage_b: [[0,0],[2,2],[4,4],[6,6],[8,8]]\n")

	_, err := executeCommand(t, "estimate", "-p", points)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate correspondences")
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))
	few := testutil.WriteFile(t, dir, "few.yaml", "image_a: [[0,0],[1,0]]\nimage_b: [[0,0],[1,0]]\n")
	manifest := testutil.WriteFile(t, dir, "jobs.yaml", `jobs:
  - name: good
    image_a: `+filepath.Base(paths.ImageA)+`
    image_b: `+filepath.Base(paths.ImageB)+`
    points: `+filepath.Base(paths.Points)+`
    output: out/good.png
  - name: bad
    image_a: `+filepath.Base(paths.ImageA)+`
    image_b: `+filepath.Base(paths.ImageB)+`
    points: `+filepath.Base(few)+`
    output: out/bad.png
`)

	output, err := executeCommand(t, "batch", manifest, "--workers", "2", "--continue-on-error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 jobs failed")
	assert.Contains(t, output, "OK   good")
	assert.Contains(t, output, "FAIL bad")
	assert.True(t, testutil.FileExists(filepath.Join(dir, "out", "good.png")))
	assert.False(t, testutil.FileExists(filepath.Join(dir, "out", "bad.png")))
}

func TestBatchCommand_MissingManifest(t *testing.T) {
	_, err := executeCommand(t, "batch", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "panorama.yaml")

	output, err := executeCommand(t, "config", "init", file)
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration written to")

	_, err = executeCommand(t, "config", "init", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	output, err = executeCommand(t, "--config", file, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "# loaded from "+file)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(output), &shown))
	assert.Equal(t, config.DefaultConfig(), shown)
}

func TestConfigFileOverridesAndFlagsWin(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixture(t, dir, testutil.NewTranslatedPair(rectA, rectB))
	cfgFile := testutil.WriteFile(t, dir, "panorama.yaml", "output:\n  format: json\n")

	output, err := executeCommand(t, "--config", cfgFile, "estimate", "-p", paths.Points)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(output)), output)

	output, err = executeCommand(t, "--config", cfgFile, "estimate", "-p", paths.Points, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, output, "Homography (")
}
