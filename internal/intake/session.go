package intake

import (
	"context"
	"fmt"
	"sync"

	"weekly-intake/internal/questions"
)

type Step int

const (
	StepIdentity Step = iota + 1
	StepPhoto
	StepAnswers
	StepReview
)

func (s Step) Valid() bool { return s >= StepIdentity && s <= StepReview }

// StepResult is the outcome of validating one step. Closed means the window
// has closed and the applicant belongs on the closed view.
type StepResult struct {
	Step        Step        `json:"step"`
	Next        Step        `json:"next"`
	Closed      bool        `json:"closed"`
	FieldErrors FieldErrors `json:"fieldErrors,omitempty"`
}

// Session holds the state of one applicant's pass through the form: the
// current step and the question set it was opened with. It has a single
// owner; the mutex only guards against a double-clicked submit.
type Session struct {
	window   WindowChecker
	pipeline *Pipeline
	rules    Rules

	mu        sync.Mutex
	step      Step
	questions questions.Set
	closed    bool
	done      bool
}

// NewSession opens a form session positioned at step 1.
func NewSession(ctx context.Context, w WindowChecker, p *Pipeline, rules Rules) *Session {
	snap := w.Current(ctx)
	return &Session{
		window:    w,
		pipeline:  p,
		rules:     rules,
		step:      StepIdentity,
		questions: snap.Questions,
		closed:    !snap.IsOpen(),
	}
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Questions() questions.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}

// Closed reports whether the window was CLOSED at the last evaluation.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// refresh re-reads the window. Callers hold s.mu.
func (s *Session) refresh(ctx context.Context) {
	snap := s.window.Current(ctx)
	s.questions = snap.Questions
	if !snap.IsOpen() {
		s.closed = true
	}
}

// Advance validates step and, when it passes, moves the session to the next
// step. Once the window is closed every call reports Closed.
func (s *Session) Advance(ctx context.Context, step Step, a Attempt) (StepResult, error) {
	if !step.Valid() {
		return StepResult{}, fmt.Errorf("%w: unknown step %d", ErrValidation, step)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return StepResult{}, ErrSessionClosed
	}

	s.refresh(ctx)
	if s.closed {
		return StepResult{Step: step, Next: step, Closed: true}, nil
	}

	var fe FieldErrors
	switch step {
	case StepIdentity:
		fe = s.rules.ValidateIdentity(a)
	case StepPhoto:
		fe = s.rules.ValidatePhoto(a.Photo)
	case StepAnswers:
		fe = s.rules.ValidateAnswers(a, s.questions)
	case StepReview:
		fe = s.rules.Validate(a, s.questions)
	}

	if len(fe) > 0 {
		s.step = step
		return StepResult{Step: step, Next: step, FieldErrors: fe}, nil
	}

	next := step
	if step < StepReview {
		next = step + 1
	}
	s.step = next
	return StepResult{Step: step, Next: next}, nil
}

// Back moves the session to an earlier step without validation.
func (s *Session) Back(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step.Valid() && step < s.step {
		s.step = step
	}
}

// Submit validates the attempt it is given and runs the pipeline. A retry
// after a failure passes the current form again, so nothing from an earlier
// attempt is reused.
func (s *Session) Submit(ctx context.Context, a Attempt) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, ErrSessionClosed
	}

	s.refresh(ctx)
	if s.closed {
		return nil, fmt.Errorf("%w: deadline %s", ErrWindowClosed, s.questions.Deadline)
	}

	a.Normalize()
	if fe := s.rules.Validate(a, s.questions); len(fe) > 0 {
		return nil, &ValidationError{Fields: fe}
	}
	a.Answers = answersFrom(a, s.questions)

	res, err := s.pipeline.Submit(ctx, a)
	if err != nil {
		return nil, err
	}
	s.done = true
	return res, nil
}

// Close ends the session. Later calls fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}
