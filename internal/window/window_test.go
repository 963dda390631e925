package window

import (
	"context"
	"testing"
	"time"

	"weekly-intake/internal/questions"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedQuestions struct {
	deadline time.Time
}

func (f fixedQuestions) GetActive(ctx context.Context) questions.Set {
	return questions.Set{QuestionSet: store.QuestionSet{Question1: "q1", Question2: "q2", Deadline: f.deadline}}
}

func TestStateAt(t *testing.T) {
	deadline := time.Date(2025, 2, 2, 23, 59, 59, 999000000, time.UTC)

	assert.Equal(t, Open, StateAt(deadline.Add(-time.Millisecond), deadline))
	assert.Equal(t, Closed, StateAt(deadline, deadline))
	assert.Equal(t, Closed, StateAt(deadline.Add(time.Hour), deadline))
}

func TestCurrent_ReevaluatedOnEveryAccess(t *testing.T) {
	deadline := time.Date(2025, 2, 2, 18, 0, 0, 0, time.UTC)
	clock := week.NewFixedClock(deadline.Add(-90 * time.Minute))
	w := New(fixedQuestions{deadline: deadline}, clock)

	snap := w.Current(context.Background())
	assert.True(t, snap.IsOpen())
	assert.Equal(t, "1h 30m", snap.TimeLeft)

	clock.Set(deadline)
	snap = w.Current(context.Background())
	assert.Equal(t, Closed, snap.State)
	assert.Equal(t, "Expired", snap.TimeLeft)
}

func TestWatch_StopsAfterClosed(t *testing.T) {
	deadline := time.Date(2025, 2, 2, 18, 0, 0, 0, time.UTC)
	clock := week.NewFixedClock(deadline.Add(-time.Second))
	w := New(fixedQuestions{deadline: deadline}, clock)

	var states []State
	done := make(chan struct{})
	go func() {
		w.Watch(context.Background(), 5*time.Millisecond, func(s Snapshot) {
			states = append(states, s.State)
			clock.Set(deadline)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after the window closed")
	}

	require.Len(t, states, 2)
	assert.Equal(t, []State{Open, Closed}, states)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	deadline := time.Date(2025, 2, 2, 18, 0, 0, 0, time.UTC)
	clock := week.NewFixedClock(deadline.Add(-time.Hour))
	w := New(fixedQuestions{deadline: deadline}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan Snapshot, 16)
	done := make(chan struct{})
	go func() {
		w.Watch(ctx, 5*time.Millisecond, func(s Snapshot) {
			select {
			case calls <- s:
			default:
			}
		})
		close(done)
	}()

	<-calls
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch ignored cancellation")
	}
}
