package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// ErrCaptureClosed is returned for clicks delivered after capture ended.
var ErrCaptureClosed = errors.New("capture already finished")

// Window identifies which view a click landed in.
type Window int

const (
	WindowOther Window = iota
	WindowA
	WindowB
)

// ParseWindow maps "a" and "b" to their windows; anything else is WindowOther.
func ParseWindow(s string) Window {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return WindowA
	case "b":
		return WindowB
	}
	return WindowOther
}

func (w Window) String() string {
	switch w {
	case WindowA:
		return "a"
	case WindowB:
		return "b"
	}
	return "other"
}

// Button is a mouse button number.
type Button int

const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	// ButtonRight ends the capture.
	ButtonRight Button = 3
)

// Event is one mouse click.
type Event struct {
	Window Window
	Point  homography.Point
	Button Button
}

// State is the phase of a ClickRecorder.
type State int

const (
	// ExpectA waits for the next point in image A.
	ExpectA State = iota
	// ExpectB waits for the point in image B matching the pending A point.
	ExpectB
	// Finished accepts no more clicks.
	Finished
)

func (s State) String() string {
	switch s {
	case ExpectA:
		return "expect_a"
	case ExpectB:
		return "expect_b"
	}
	return "finished"
}

// Outcome describes what a click did.
type Outcome string

const (
	OutcomeRecordedA Outcome = "recorded_a" // A point stored, waiting for B
	OutcomePaired    Outcome = "paired"     // B point completed a pair
	OutcomeIgnored   Outcome = "ignored"    // click outside A while expecting A
	OutcomeDropped   Outcome = "dropped"    // pending A point discarded
	OutcomeFinished  Outcome = "finished"   // capture ended
)

// ClickRecorder turns alternating clicks into correspondences. The user
// clicks a point in A, then the matching point in B, and repeats; a right
// click ends the capture. A B click that lands outside B discards the
// pending A point. It is safe for concurrent use.
type ClickRecorder struct {
	mu      sync.Mutex
	a, b    []homography.Point
	state   State
	done    chan struct{}
	logger  *slog.Logger
	clicks  int
	dropped int
}

// NewClickRecorder creates a recorder in the ExpectA state.
func NewClickRecorder(logger *slog.Logger) *ClickRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickRecorder{done: make(chan struct{}), logger: logger}
}

// Click feeds one event into the state machine.
func (r *ClickRecorder) Click(ev Event) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Finished {
		return "", ErrCaptureClosed
	}
	r.clicks++

	var out Outcome
	switch r.state {
	case ExpectA:
		switch {
		case ev.Button == ButtonRight:
			out = r.finishLocked()
		case ev.Window == WindowA:
			r.a = append(r.a, ev.Point)
			r.state = ExpectB
			out = OutcomeRecordedA
		default:
			out = OutcomeIgnored
		}
	case ExpectB:
		switch {
		case ev.Button == ButtonRight:
			out = r.finishLocked()
		case ev.Window == WindowB:
			r.b = append(r.b, ev.Point)
			r.state = ExpectA
			out = OutcomePaired
		default:
			r.dropPendingLocked()
			r.state = ExpectA
			out = OutcomeDropped
		}
	}

	r.logger.Debug("Captured click",
		"window", ev.Window.String(),
		"x", ev.Point.X, "y", ev.Point.Y,
		"button", int(ev.Button),
		"outcome", string(out),
		"pairs", len(r.b))
	return out, nil
}

// Finish ends the capture as a right click would. It is idempotent.
func (r *ClickRecorder) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Finished {
		r.finishLocked()
	}
}

func (r *ClickRecorder) finishLocked() Outcome {
	if r.state == ExpectB {
		r.dropPendingLocked()
	}
	r.state = Finished
	close(r.done)
	r.logger.Info("Capture finished", "pairs", len(r.b), "clicks", r.clicks, "dropped", r.dropped)
	return OutcomeFinished
}

func (r *ClickRecorder) dropPendingLocked() {
	r.a = r.a[:len(r.a)-1]
	r.dropped++
}

// State returns the current phase.
func (r *ClickRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed when the capture ends.
func (r *ClickRecorder) Done() <-chan struct{} { return r.done }

// Pairs returns the completed correspondences so far.
func (r *ClickRecorder) Pairs() []homography.Correspondence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return homography.Pair(r.a, r.b)
}

// Correspondences blocks until the capture ends and returns the completed
// pairs, or returns the context error first.
func (r *ClickRecorder) Correspondences(ctx context.Context) ([]homography.Correspondence, error) {
	select {
	case <-r.done:
		return r.Pairs(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for clicks: %w", ctx.Err())
	}
}
