// Package window decides whether the weekly submission window is open.
//
// The state is recomputed on every access from the clock and the active
// question set's deadline; nothing is cached. Once a deadline has passed the
// window stays CLOSED for that question set, and only a newly configured set
// with a later deadline reopens it.
package window

import (
	"context"
	"time"

	"weekly-intake/internal/questions"
	"weekly-intake/internal/week"
)

type State string

const (
	Open   State = "OPEN"
	Closed State = "CLOSED"
)

// StateAt is the transition rule: CLOSED once now reaches deadline.
func StateAt(now, deadline time.Time) State {
	if !now.Before(deadline) {
		return Closed
	}
	return Open
}

type QuestionSource interface {
	GetActive(ctx context.Context) questions.Set
}

// Snapshot is one evaluation of the window.
type Snapshot struct {
	State     State         `json:"state"`
	Questions questions.Set `json:"questions"`
	Now       time.Time     `json:"now"`
	TimeLeft  string        `json:"timeLeft"`
}

func (s Snapshot) IsOpen() bool { return s.State == Open }

type Window struct {
	questions QuestionSource
	clock     week.Clock
}

func New(qs QuestionSource, clock week.Clock) *Window {
	return &Window{questions: qs, clock: clock}
}

// Current evaluates the window against the active question set.
func (w *Window) Current(ctx context.Context) Snapshot {
	set := w.questions.GetActive(ctx)
	now := w.clock.Now()
	return Snapshot{
		State:     StateAt(now, set.Deadline),
		Questions: set,
		Now:       now,
		TimeLeft:  week.TimeLeft(now, set.Deadline),
	}
}

// Watch calls fn with a fresh snapshot immediately and then every interval
// (capped at one second) until ctx is done or a CLOSED snapshot has been
// delivered.
func (w *Window) Watch(ctx context.Context, interval time.Duration, fn func(Snapshot)) {
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}

	snap := w.Current(ctx)
	fn(snap)
	if !snap.IsOpen() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := w.Current(ctx)
			fn(snap)
			if !snap.IsOpen() {
				return
			}
		}
	}
}
