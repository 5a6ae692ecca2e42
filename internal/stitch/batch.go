package stitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/utils"
)

// Job is one image pair to stitch.
type Job struct {
	Name   string `yaml:"name" json:"name"`
	ImageA string `yaml:"image_a" json:"image_a"`
	ImageB string `yaml:"image_b" json:"image_b"`
	Points string `yaml:"points" json:"points"`
	Output string `yaml:"output" json:"output"`
}

// Manifest lists the jobs of a batch run.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadManifest reads a batch manifest. Relative paths in jobs are resolved
// against the manifest's directory, and jobs without a name get one.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is user supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s contains no jobs", path)
	}

	base := filepath.Dir(path)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Name == "" {
			j.Name = fmt.Sprintf("job-%d", i+1)
		}
		if err := j.validate(); err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		j.ImageA = resolve(base, j.ImageA)
		j.ImageB = resolve(base, j.ImageB)
		j.Points = resolve(base, j.Points)
		j.Output = resolve(base, j.Output)
	}
	return &m, nil
}

func (j Job) validate() error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"image_a", j.ImageA}, {"image_b", j.ImageB}, {"points", j.Points}, {"output", j.Output},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// BatchConfig controls a batch run.
type BatchConfig struct {
	MaxWorkers       int              // Parallel jobs (0 = runtime.NumCPU())
	ContinueOnError  bool             // Keep going after a failed job
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultBatchConfig returns defaults for batch runs.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MaxWorkers: runtime.NumCPU()}
}

// JobResult is the outcome of one job.
type JobResult struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Output   string   `json:"output,omitempty"`
	Summary  *Summary `json:"summary,omitempty"`
	Error    string   `json:"error,omitempty"`
	Duration int64    `json:"duration_ns"`
	Err      error    `json:"-"`
}

// BatchStats aggregates a batch run.
type BatchStats struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Skipped   int   `json:"skipped"`
	Workers   int   `json:"workers"`
	TotalNs   int64 `json:"total_ns"`
}

type batchJob struct {
	index int
	job   Job
}

// RunBatch stitches jobs with a worker pool and returns one result per job
// in input order. Without ContinueOnError the first failure cancels the
// remaining jobs, whose results stay empty, and is returned as the error.
func (s *Stitcher) RunBatch(ctx context.Context, jobs []Job, cfg BatchConfig) ([]JobResult, BatchStats, error) {
	stats := BatchStats{Total: len(jobs)}
	if len(jobs) == 0 {
		return nil, stats, errors.New("no jobs provided")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	cfg.MaxWorkers = min(cfg.MaxWorkers, len(jobs))
	stats.Workers = cfg.MaxWorkers
	progress := cfg.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	start := time.Now()
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan batchJob, len(jobs))
	results := make(chan JobResult, len(jobs))
	for i, j := range jobs {
		queue <- batchJob{index: i, job: j}
	}
	close(queue)

	var wg sync.WaitGroup
	for range cfg.MaxWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bj := range queue {
				if runCtx.Err() != nil {
					return
				}
				results <- s.runJob(runCtx, bj)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]JobResult, len(jobs))
	done := make([]bool, len(jobs))
	var firstErr error
	count := 0
	for r := range results {
		if r.Err != nil && runCtx.Err() != nil && errors.Is(r.Err, context.Canceled) {
			// Interrupted by cancellation, reported as skipped below.
			continue
		}
		ordered[r.Index] = r
		done[r.Index] = true
		count++
		if r.Err != nil {
			stats.Failed++
			progress.OnError(r.Index, r.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("job %d (%s): %w", r.Index, r.Name, r.Err)
			}
			if !cfg.ContinueOnError {
				cancel()
			}
		} else {
			stats.Succeeded++
		}
		progress.OnProgress(count, len(jobs))
	}

	for i := range ordered {
		if !done[i] {
			ordered[i] = JobResult{Index: i, Name: jobs[i].Name}
			stats.Skipped++
		}
	}
	stats.TotalNs = time.Since(start).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return ordered, stats, err
	}
	if cfg.ContinueOnError {
		return ordered, stats, nil
	}
	return ordered, stats, firstErr
}

func (s *Stitcher) runJob(ctx context.Context, bj batchJob) JobResult {
	start := time.Now()
	r := JobResult{Index: bj.index, Name: bj.job.Name}
	res, err := s.StitchFiles(ctx, bj.job)
	r.Duration = time.Since(start).Nanoseconds()
	if err != nil {
		r.Err = err
		r.Error = err.Error()
		return r
	}
	sum := Summarize(res)
	r.Summary = &sum
	r.Output = bj.job.Output
	return r
}

// StitchFiles loads a job's images and points, stitches them and writes
// the panorama to the job's output path.
func (s *Stitcher) StitchFiles(ctx context.Context, job Job) (*Result, error) {
	a, _, err := utils.LoadImage(job.ImageA)
	if err != nil {
		return nil, fmt.Errorf("image A: %w", err)
	}
	b, _, err := utils.LoadImage(job.ImageB)
	if err != nil {
		return nil, fmt.Errorf("image B: %w", err)
	}
	res, err := s.Stitch(ctx, a, b, capture.FileProvider{Path: job.Points})
	if err != nil {
		return nil, err
	}
	if job.Output != "" {
		if err := utils.SaveImage(res.Composite.Canvas, job.Output); err != nil {
			return nil, fmt.Errorf("failed to save panorama: %w", err)
		}
	}
	return res, nil
}
