package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/homography"
	"github.com/MeKo-Tech/panorama/internal/testutil"
	"github.com/MeKo-Tech/panorama/internal/utils"
)

// featureContext holds the state of one scenario.
type featureContext struct {
	dir string

	lastCommand string
	lastOutput  string
	lastStderr  string
	lastError   error
}

func newFeatureContext() (*featureContext, error) {
	dir, err := os.MkdirTemp("", "panorama-feature-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &featureContext{dir: dir}, nil
}

func (fc *featureContext) cleanup() error {
	return os.RemoveAll(fc.dir)
}

// path resolves name inside the scenario directory.
func (fc *featureContext) path(name string) string {
	return filepath.Join(fc.dir, strings.ReplaceAll(name, "{dir}/", ""))
}

// aTranslatedImagePair writes a.png, b.png and points.yaml.
func (fc *featureContext) aTranslatedImagePair() error {
	fx := testutil.NewTranslatedPair(rectA, rectB)
	if err := utils.SaveImage(fx.A, fc.path("a.png")); err != nil {
		return err
	}
	if err := utils.SaveImage(fx.B, fc.path("b.png")); err != nil {
		return err
	}
	data, err := capture.Marshal(homography.Pair(fx.PointsA, fx.PointsB))
	if err != nil {
		return err
	}
	return os.WriteFile(fc.path("points.yaml"), data, 0o600)
}

func (fc *featureContext) aFileWith(name string, doc *godog.DocString) error {
	p := fc.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(doc.Content), 0o600)
}

// iRun executes the panorama command line; {dir} expands to the scenario
// directory.
func (fc *featureContext) iRun(command string) error {
	fc.lastCommand = command
	args := strings.Fields(strings.ReplaceAll(command, "{dir}", fc.dir))
	if len(args) > 0 && args[0] == "panorama" {
		args = args[1:]
	}

	root := NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	fc.lastError = root.Execute()
	fc.lastOutput = stdout.String()
	fc.lastStderr = stderr.String()
	return nil
}

func (fc *featureContext) theCommandShouldSucceed() error {
	if fc.lastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", fc.lastCommand, fc.lastError, fc.lastStderr)
	}
	return nil
}

func (fc *featureContext) theCommandShouldFail() error {
	if fc.lastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure\noutput: %s", fc.lastCommand, fc.lastOutput)
	}
	return nil
}

func (fc *featureContext) theOutputShouldContain(text string) error {
	if !strings.Contains(fc.lastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, fc.lastOutput)
	}
	return nil
}

func (fc *featureContext) theErrorShouldMention(text string) error {
	if fc.lastError == nil {
		return errors.New("no error occurred")
	}
	if !strings.Contains(strings.ToLower(fc.lastError.Error()), strings.ToLower(text)) {
		return fmt.Errorf("error %q does not mention %q", fc.lastError, text)
	}
	return nil
}

func (fc *featureContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(fc.lastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", fc.lastOutput)
	}
	return nil
}

// theJSONFieldShouldEqual compares a dotted path in the JSON output with a
// number.
func (fc *featureContext) theJSONFieldShouldEqual(field string, want float64) error {
	var doc any
	if err := json.Unmarshal([]byte(fc.lastOutput), &doc); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	cur := doc
	for _, key := range strings.Split(field, ".") {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return fmt.Errorf("invalid index %q in %s", key, field)
			}
			cur = v[i]
		default:
			return fmt.Errorf("field %s not found", field)
		}
	}
	got, ok := cur.(float64)
	if !ok {
		return fmt.Errorf("field %s is %v, not a number", field, cur)
	}
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		return fmt.Errorf("field %s = %v, want %v", field, got, want)
	}
	return nil
}

func (fc *featureContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(fc.path(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (fc *featureContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(fc.path(name)) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (fc *featureContext) theImageShouldBe(name string, width, height int) error {
	img, _, err := utils.LoadImage(fc.path(name))
	if err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	var fc *featureContext

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		var err error
		fc, err = newFeatureContext()
		return ctx, err
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if err := fc.cleanup(); err != nil {
			fmt.Printf("Warning: Failed to cleanup scenario: %v\n", err)
		}
		return ctx, nil
	})

	sc.Step(`^a translated image pair$`, func() error { return fc.aTranslatedImagePair() })
	sc.Step(`^a file "([^"]*)" with:$`, func(name string, doc *godog.DocString) error { return fc.aFileWith(name, doc) })
	sc.Step(`^I run "([^"]*)"$`, func(command string) error { return fc.iRun(command) })
	sc.Step(`^the command should succeed$`, func() error { return fc.theCommandShouldSucceed() })
	sc.Step(`^the command should fail$`, func() error { return fc.theCommandShouldFail() })
	sc.Step(`^the output should contain "([^"]*)"$`, func(text string) error { return fc.theOutputShouldContain(text) })
	sc.Step(`^the output should be valid JSON$`, func() error { return fc.theOutputShouldBeValidJSON() })
	sc.Step(`^the JSON field "([^"]*)" should equal (-?[\d.]+)$`, func(field string, want float64) error {
		return fc.theJSONFieldShouldEqual(field, want)
	})
	sc.Step(`^the error should mention "([^"]*)"$`, func(text string) error { return fc.theErrorShouldMention(text) })
	sc.Step(`^the file "([^"]*)" should exist$`, func(name string) error { return fc.theFileShouldExist(name) })
	sc.Step(`^the file "([^"]*)" should not exist$`, func(name string) error { return fc.theFileShouldNotExist(name) })
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, func(name string, w, h int) error {
		return fc.theImageShouldBe(name, w, h)
	})
}

// TestFeatures runs the Godog suite for every .feature file in features/.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		found = true
		featurePath := filepath.Join("features", e.Name())

		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: initializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{featurePath},
					Strict:   true,
					TestingT: t,
				},
			}
			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}
	if !found {
		t.Fatalf("no .feature files found in features/")
	}
}
