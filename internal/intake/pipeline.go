// Package intake runs weekly application submissions: window check,
// duplicate guard, photo upload and record insertion, in that order.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"
	"weekly-intake/internal/common/observability"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"
	"weekly-intake/internal/window"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const hookTimeout = 10 * time.Second

// Attempt is one submission as entered by the applicant.
type Attempt struct {
	FullName string        `json:"fullName"`
	Email    string        `json:"email"`
	Answers  store.Answers `json:"answers"`
	Photo    *photos.Photo `json:"-"`

	// ClientIPHint is the address seen by the transport, if any.
	ClientIPHint string `json:"-"`
}

// Result of an accepted submission. PhotoErr is set when the record was
// stored without its photo.
type Result struct {
	Record   store.Application `json:"record"`
	PhotoErr error             `json:"-"`
}

func (r *Result) Degraded() bool { return r.PhotoErr != nil }

type Store interface {
	FindApplication(ctx context.Context, email string, bucket week.Bucket) (*store.Application, error)
	InsertApplication(ctx context.Context, app *store.Application) error
}

type PhotoUploader interface {
	Upload(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error)
}

type IPResolver interface {
	Resolve(ctx context.Context, hint string) string
}

type WindowChecker interface {
	Current(ctx context.Context) window.Snapshot
}

// Hook runs after a record is committed. Failures are logged and counted
// and never change the submission result.
type Hook interface {
	Name() string
	AfterSubmit(ctx context.Context, app store.Application) error
}

type HookFunc struct {
	HookName string
	Fn       func(ctx context.Context, app store.Application) error
}

func (h HookFunc) Name() string { return h.HookName }

func (h HookFunc) AfterSubmit(ctx context.Context, app store.Application) error {
	return h.Fn(ctx, app)
}

type Deps struct {
	Window   WindowChecker
	Store    Store
	Photos   PhotoUploader // nil disables uploads
	IP       IPResolver    // nil records "unknown" unless a hint is given
	Calc     week.Calculator
	Clock    week.Clock
	Logger   logger.Logger
	Observer *observability.Observability
	Hooks    []Hook
}

type Pipeline struct {
	window WindowChecker
	store  Store
	photos PhotoUploader
	ip     IPResolver
	calc   week.Calculator
	clock  week.Clock
	logger logger.Logger
	obs    *observability.Observability
	hooks  []Hook
}

func NewPipeline(d Deps) *Pipeline {
	if d.Clock == nil {
		d.Clock = week.SystemClock{}
	}
	if d.Observer == nil {
		d.Observer = observability.NewNoop()
	}
	if d.Logger == nil {
		d.Logger = logger.NewNoOpLogger()
	}
	return &Pipeline{
		window: d.Window,
		store:  d.Store,
		photos: d.Photos,
		ip:     d.IP,
		calc:   d.Calc,
		clock:  d.Clock,
		logger: d.Logger.WithFields(map[string]interface{}{"component": "intake"}),
		obs:    d.Observer,
		hooks:  d.Hooks,
	}
}

// AddHook registers a post-commit hook. Not safe to call concurrently with
// Submit.
func (p *Pipeline) AddHook(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Submit runs the pipeline once. It never retries; callers retry from the
// start so the window and duplicate checks are re-evaluated.
func (p *Pipeline) Submit(ctx context.Context, a Attempt) (res *Result, err error) {
	ctx, span := p.obs.StartSpan(ctx, "intake.submit")
	defer func() {
		outcome := outcomeOf(res, err)
		span.SetAttributes(attribute.String("intake.outcome", outcome))
		metrics.IntakeSubmissions.WithLabelValues(outcome).Inc()
		if outcome == "failed" {
			observability.EndSpan(span, err)
			return
		}
		span.End()
	}()

	log := p.logger.WithFields(map[string]interface{}{
		"email":   a.Email,
		"traceId": observability.TraceID(ctx),
	})

	// 1. window
	var snap window.Snapshot
	_ = p.stage(ctx, "window", func(ctx context.Context) error {
		snap = p.window.Current(ctx)
		return nil
	})
	if !snap.IsOpen() {
		log.Info("submission rejected, window closed", map[string]interface{}{
			"deadline": snap.Questions.Deadline,
		})
		return nil, fmt.Errorf("%w: deadline %s", ErrWindowClosed, snap.Questions.Deadline.Format(time.RFC3339))
	}

	now := p.clock.Now()
	bucket := p.calc.Bucket(now)
	log = log.WithFields(map[string]interface{}{"bucket": bucket.Key()})

	// 2. duplicate guard fast path
	err = p.stage(ctx, "duplicate_check", func(ctx context.Context) error {
		existing, err := p.store.FindApplication(ctx, a.Email, bucket)
		switch {
		case err == nil:
			return &DuplicateError{Email: a.Email, Bucket: bucket, SubmittedAt: existing.SubmittedAt}
		case errors.Is(err, store.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("duplicate check: %w", err)
		}
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			log.Info("duplicate submission rejected", nil)
		} else {
			log.Error("duplicate check failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, err
	}

	// 3. photo, best effort
	var photoURL *string
	var photoErr error
	if a.Photo != nil && len(a.Photo.Data) > 0 {
		_ = p.stage(ctx, "photo_upload", func(ctx context.Context) error {
			if p.photos == nil {
				photoErr = errors.New("photo storage is not configured")
				return photoErr
			}
			url, err := p.photos.Upload(ctx, bucket, now, *a.Photo)
			if err != nil {
				photoErr = err
				return err
			}
			photoURL = &url
			return nil
		})
		if photoErr != nil {
			metrics.IntakeDegradations.WithLabelValues("photo_upload").Inc()
			log.Warn("photo upload failed, storing application without photo", map[string]interface{}{
				"error": photoErr.Error(),
			})
		}
	}

	// 4. insert
	clientIP := p.resolveIP(ctx, a.ClientIPHint)
	record := store.Application{
		ID:          uuid.New().String(),
		FullName:    a.FullName,
		Email:       a.Email,
		WeekNumber:  bucket.Week,
		Year:        bucket.Year,
		SubmittedAt: p.clock.Now().UTC(),
		PhotoURL:    photoURL,
		Answers:     a.Answers,
		ClientIP:    &clientIP,
	}
	if record.Answers == nil {
		record.Answers = store.Answers{}
	}

	err = p.stage(ctx, "insert", func(ctx context.Context) error {
		err := p.store.InsertApplication(ctx, &record)
		if err == nil {
			return nil
		}
		if store.IsUniqueViolation(err) {
			return p.duplicateFromWinner(ctx, a.Email, bucket)
		}
		return fmt.Errorf("insert application: %w", err)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			log.Info("concurrent duplicate rejected by unique constraint", nil)
		} else {
			log.Error("inserting application failed", map[string]interface{}{
				"error": err.Error(),
				"kind":  string(store.KindOf(err)),
			})
		}
		return nil, err
	}

	log.Info("application accepted", map[string]interface{}{
		"applicationId": record.ID,
		"hasPhoto":      photoURL != nil,
		"degraded":      photoErr != nil,
	})

	p.runHooks(ctx, record)

	return &Result{Record: record, PhotoErr: photoErr}, nil
}

// duplicateFromWinner re-reads the row that won the race so the error carries
// its timestamp.
func (p *Pipeline) duplicateFromWinner(ctx context.Context, email string, bucket week.Bucket) error {
	dup := &DuplicateError{Email: email, Bucket: bucket}
	if winner, err := p.store.FindApplication(ctx, email, bucket); err == nil {
		dup.SubmittedAt = winner.SubmittedAt
	}
	return dup
}

func (p *Pipeline) resolveIP(ctx context.Context, hint string) string {
	if p.ip == nil {
		if hint != "" {
			return hint
		}
		metrics.IntakeDegradations.WithLabelValues("ip_lookup").Inc()
		return "unknown"
	}
	ip := p.ip.Resolve(ctx, hint)
	if ip == "unknown" {
		metrics.IntakeDegradations.WithLabelValues("ip_lookup").Inc()
	}
	return ip
}

func (p *Pipeline) runHooks(ctx context.Context, app store.Application) {
	if len(p.hooks) == 0 {
		return
	}
	// the record is committed; hooks outlive a disconnected client
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()

	for _, h := range p.hooks {
		if err := h.AfterSubmit(hctx, app); err != nil {
			metrics.IntakeHookFailures.WithLabelValues(h.Name()).Inc()
			p.logger.Warn("post-submit hook failed", map[string]interface{}{
				"hook":          h.Name(),
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.obs.StartSpan(ctx, "intake."+name, attribute.String("intake.stage", name))
	start := time.Now()

	err := fn(ctx)

	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.IntakeStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	p.obs.RecordStage(ctx, name, outcome, elapsed)
	observability.EndSpan(span, err)
	return err
}

func outcomeOf(res *Result, err error) string {
	switch {
	case err == nil && res != nil && res.Degraded():
		return "degraded"
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "failed"
	}
}
