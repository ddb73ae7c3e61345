// Package timer implements the rest timer and the per-set exercise timer.
//
// Both timers store a start timestamp and a target instead of a ticking
// counter. Every observation recomputes elapsed and remaining time from the
// clock, so a process that was suspended reads the correct values on resume.
package timer

import (
	"time"

	"github.com/google/uuid"
)

// Clock is the time source. Tests inject a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Mode distinguishes a countdown from a zero-based stopwatch.
type Mode string

const (
	ModeCountdown Mode = "countdown"
	ModeStopwatch Mode = "stopwatch"
)

// Reading is a point-in-time observation of a timer.
type Reading struct {
	Running   bool      `json:"running"`
	Mode      Mode      `json:"mode,omitempty"`
	SetID     uuid.UUID `json:"set_id,omitempty"`
	Total     int       `json:"total_seconds"`
	Elapsed   int       `json:"elapsed_seconds"`
	Remaining int       `json:"remaining_seconds"`
}

// State is the persisted form of a timer.
type State struct {
	StartedAt   time.Time `json:"started_at"`
	Total       int       `json:"total"`
	SetID       uuid.UUID `json:"set_id,omitempty"`
	EndReported bool      `json:"end_reported,omitempty"`
}

func elapsedSeconds(c Clock, start time.Time) int {
	d := c.Now().Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Rest is the single rest countdown of a session.
type Rest struct {
	clock Clock
	state State
}

// NewRest creates an idle rest timer.
func NewRest(c Clock) *Rest {
	if c == nil {
		c = SystemClock{}
	}
	return &Rest{clock: c}
}

// Start begins a countdown, replacing any running one. A non-positive
// duration stops the timer.
func (r *Rest) Start(seconds int) {
	if seconds <= 0 {
		r.Stop()
		return
	}
	r.state = State{StartedAt: r.clock.Now(), Total: seconds}
}

// Stop cancels the countdown.
func (r *Rest) Stop() {
	r.state = State{}
}

// Read observes the timer. Remaining never goes below zero.
func (r *Rest) Read() Reading {
	if r.state.StartedAt.IsZero() {
		return Reading{}
	}
	elapsed := elapsedSeconds(r.clock, r.state.StartedAt)
	remaining := r.state.Total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if elapsed > r.state.Total {
		elapsed = r.state.Total
	}
	return Reading{
		Running:   remaining > 0,
		Mode:      ModeCountdown,
		Total:     r.state.Total,
		Elapsed:   elapsed,
		Remaining: remaining,
	}
}

// Poll observes the timer and reports ended=true exactly once, on the first
// observation after the countdown reached zero.
func (r *Rest) Poll() (Reading, bool) {
	rd := r.Read()
	if r.state.StartedAt.IsZero() || rd.Running || r.state.EndReported {
		return rd, false
	}
	r.state.EndReported = true
	return rd, true
}

func (r *Rest) State() State { return r.state }

func (r *Rest) Restore(s State) { r.state = s }

// Exercise is the per-set countdown or stopwatch. It is bound to one set at
// a time.
type Exercise struct {
	clock Clock
	state State
}

// NewExercise creates an idle exercise timer.
func NewExercise(c Clock) *Exercise {
	if c == nil {
		c = SystemClock{}
	}
	return &Exercise{clock: c}
}

// Start binds the timer to setID. seconds > 0 starts a countdown, otherwise
// a stopwatch. Starting again for the set that is already running is a
// no-op. Starting for a different set stops the current timer first; its
// final reading is returned with replaced=true.
func (x *Exercise) Start(seconds int, setID uuid.UUID) (prev Reading, replaced bool) {
	if x.bound() {
		cur := x.Read()
		if x.state.SetID == setID && cur.Running {
			return Reading{}, false
		}
		if x.state.SetID != setID {
			prev, replaced = cur, true
		}
	}
	if seconds < 0 {
		seconds = 0
	}
	x.state = State{StartedAt: x.clock.Now(), Total: seconds, SetID: setID}
	return prev, replaced
}

// Stop returns the elapsed seconds and clears the binding. For a countdown
// that is target minus remaining.
func (x *Exercise) Stop() int {
	if !x.bound() {
		return 0
	}
	elapsed := x.Read().Elapsed
	x.state = State{}
	return elapsed
}

// Read observes the timer.
func (x *Exercise) Read() Reading {
	if !x.bound() {
		return Reading{}
	}
	elapsed := elapsedSeconds(x.clock, x.state.StartedAt)
	if x.state.Total == 0 {
		return Reading{Running: true, Mode: ModeStopwatch, SetID: x.state.SetID, Elapsed: elapsed}
	}
	if elapsed > x.state.Total {
		elapsed = x.state.Total
	}
	return Reading{
		Running:   elapsed < x.state.Total,
		Mode:      ModeCountdown,
		SetID:     x.state.SetID,
		Total:     x.state.Total,
		Elapsed:   elapsed,
		Remaining: x.state.Total - elapsed,
	}
}

// BoundTo returns the set the timer is bound to, or uuid.Nil.
func (x *Exercise) BoundTo() uuid.UUID { return x.state.SetID }

func (x *Exercise) bound() bool { return !x.state.StartedAt.IsZero() }

func (x *Exercise) State() State { return x.state }

func (x *Exercise) Restore(s State) { x.state = s }
