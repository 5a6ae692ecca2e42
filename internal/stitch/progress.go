package stitch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress updates while a batch runs.
type ProgressCallback interface {
	// OnStart is called once with the number of jobs.
	OnStart(total int)
	// OnProgress is called after each finished job.
	OnProgress(current, total int)
	// OnComplete is called when the batch is done.
	OnComplete()
	// OnError is called for each failed job with its index.
	OnError(index int, err error)
}

// NoOpProgressCallback ignores all updates.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a progress bar on a terminal.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
}

// NewConsoleProgressCallback creates a console reporter; nil writes to stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in characters.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	if total == 0 {
		return
	}

	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total,
		float64(current)/float64(total)*100)
	if elapsed := now.Sub(c.startTime); current > 0 && current < total && elapsed > 0 {
		eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
		status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
	}
	_, _ = fmt.Fprint(c.writer, status)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sJob %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger *slog.Logger
	level  slog.Level

	mu        sync.Mutex
	startTime time.Time
}

// NewLogProgressCallback creates a log reporter; nil uses slog.Default().
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	l.startTime = time.Now()
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "Starting batch", "jobs", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.logger.Log(context.Background(), l.level, "Batch progress", "done", current, "total", total)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.startTime)
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "Batch finished", "elapsed_ms", elapsed.Milliseconds())
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Error("Batch job failed", "index", index, "error", err)
}
