// Package common provides small utilities shared by the pipeline packages.
package common

import (
	"fmt"
	"time"
)

// Timer measures consecutive phases of one run. Each Lap returns the time
// since the previous lap (or since the timer started).
type Timer struct {
	name  string
	start time.Time
	last  time.Time
	laps  []Lap
	now   func() time.Time
}

// Lap is one measured phase.
type Lap struct {
	Name     string
	Duration time.Duration
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return NewNamedTimer("")
}

// NewNamedTimer starts a timer with the given name.
func NewNamedTimer(name string) *Timer {
	return newTimer(name, time.Now)
}

func newTimer(name string, now func() time.Time) *Timer {
	t := now()
	return &Timer{name: name, start: t, last: t, now: now}
}

// Lap closes the current phase under the given name and returns its duration.
func (t *Timer) Lap(phase string) time.Duration {
	n := t.now()
	d := n.Sub(t.last)
	t.last = n
	t.laps = append(t.laps, Lap{Name: phase, Duration: d})
	return d
}

// Laps returns the phases recorded so far.
func (t *Timer) Laps() []Lap {
	return append([]Lap(nil), t.laps...)
}

// Total returns the time since the timer started.
func (t *Timer) Total() time.Duration {
	return t.now().Sub(t.start)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String lists the recorded laps, e.g. "stitch: estimate=2ms compose=40ms".
func (t *Timer) String() string {
	s := t.name
	if s != "" {
		s += ":"
	}
	for i, l := range t.laps {
		if i > 0 || s != "" {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", l.Name, l.Duration)
	}
	return s
}
