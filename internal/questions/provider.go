// Package questions supplies the active weekly question set and lets admins
// configure new ones.
package questions

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"

	"github.com/google/uuid"
)

var DefaultQuestions = [3]string{
	"Why are you interested in this program?",
	"What unique skills or experiences do you bring?",
	"How do you plan to contribute to our community?",
}

type Store interface {
	FindActiveQuestions(ctx context.Context, bucket week.Bucket) (*store.QuestionSet, error)
	InsertQuestions(ctx context.Context, qs *store.QuestionSet) error
}

// Set is the question set served to the form. IsDefault marks the built-in
// fallback used when nothing is configured for the week.
type Set struct {
	store.QuestionSet
	IsDefault bool `json:"isDefault"`
}

// HasQuestion3 reports whether the form should ask a third question.
func (s Set) HasQuestion3() bool {
	return strings.TrimSpace(s.Question3) != ""
}

type CreateInput struct {
	WeekNumber int       `json:"weekNumber"`
	Year       int       `json:"year"`
	Question1  string    `json:"question1"`
	Question2  string    `json:"question2"`
	Question3  string    `json:"question3,omitempty"`
	Deadline   time.Time `json:"deadline"`
}

type Provider struct {
	store  Store
	calc   week.Calculator
	clock  week.Clock
	logger logger.Logger
}

func NewProvider(s Store, calc week.Calculator, clock week.Clock, log logger.Logger) *Provider {
	return &Provider{
		store:  s,
		calc:   calc,
		clock:  clock,
		logger: log.WithFields(map[string]interface{}{"component": "questions"}),
	}
}

// GetActive returns the configured set for the current week, or the default
// set. It never fails: the form must stay usable when the backend does not.
func (p *Provider) GetActive(ctx context.Context) Set {
	now := p.clock.Now()
	bucket := p.calc.Bucket(now)

	qs, err := p.store.FindActiveQuestions(ctx, bucket)
	switch {
	case err == nil && qs != nil:
		return Set{QuestionSet: *qs}
	case err == nil, errors.Is(err, store.ErrNotFound):
		p.logger.Debug("no questions configured, using defaults", map[string]interface{}{
			"bucket": bucket.Key(),
		})
	default:
		p.logger.Warn("loading weekly questions failed, using defaults", map[string]interface{}{
			"bucket": bucket.Key(),
			"kind":   string(store.KindOf(err)),
			"error":  err.Error(),
		})
	}

	return p.Default(now)
}

// Default returns the built-in set with a deadline computed from now.
func (p *Provider) Default(now time.Time) Set {
	bucket := p.calc.Bucket(now)
	return Set{
		QuestionSet: store.QuestionSet{
			WeekNumber: bucket.Week,
			Year:       bucket.Year,
			Question1:  DefaultQuestions[0],
			Question2:  DefaultQuestions[1],
			Question3:  DefaultQuestions[2],
			Deadline:   p.calc.WeekDeadline(now),
			IsActive:   true,
		},
		IsDefault: true,
	}
}

// Create stores a new active set. The next GetActive for that week returns it.
func (p *Provider) Create(ctx context.Context, in CreateInput) (*Set, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	qs := store.QuestionSet{
		ID:         uuid.New().String(),
		WeekNumber: in.WeekNumber,
		Year:       in.Year,
		Question1:  strings.TrimSpace(in.Question1),
		Question2:  strings.TrimSpace(in.Question2),
		Question3:  strings.TrimSpace(in.Question3),
		Deadline:   in.Deadline,
		IsActive:   true,
		CreatedAt:  p.clock.Now().UTC(),
	}

	if err := p.store.InsertQuestions(ctx, &qs); err != nil {
		p.logger.Error("creating weekly questions failed", map[string]interface{}{
			"weekNumber": in.WeekNumber,
			"year":       in.Year,
			"error":      err.Error(),
		})
		return nil, apperrors.NewPersistenceError(store.KindOf(err), err)
	}

	p.logger.Info("weekly questions created", map[string]interface{}{
		"id":         qs.ID,
		"weekNumber": qs.WeekNumber,
		"year":       qs.Year,
		"deadline":   qs.Deadline,
	})

	return &Set{QuestionSet: qs}, nil
}

func validateCreate(in CreateInput) error {
	fields := map[string]string{}
	if in.WeekNumber < 1 || in.WeekNumber > 53 {
		fields["weekNumber"] = "Week number must be between 1 and 53"
	}
	if in.Year <= 0 {
		fields["year"] = "Year is required"
	}
	if strings.TrimSpace(in.Question1) == "" {
		fields["question1"] = "Question 1 is required"
	}
	if strings.TrimSpace(in.Question2) == "" {
		fields["question2"] = "Question 2 is required"
	}
	if in.Deadline.IsZero() {
		fields["deadline"] = "Deadline is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewValidationError("weekly questions are incomplete", fields)
}
