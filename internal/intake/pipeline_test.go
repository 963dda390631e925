package intake

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var openDeadline = time.Date(2025, time.February, 2, 23, 59, 59, 999000000, time.UTC)

func TestPipeline_Submit_Success(t *testing.T) {
	f := newFixture(t, openDeadline)

	res, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.NoError(t, err)
	assert.False(t, res.Degraded())
	rec := res.Record
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 5, rec.WeekNumber)
	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, testNow, rec.SubmittedAt)
	require.NotNil(t, rec.PhotoURL)
	assert.Contains(t, *rec.PhotoURL, "2025/week-5/")
	require.NotNil(t, rec.ClientIP)
	assert.Equal(t, "198.51.100.1", *rec.ClientIP)
	assert.Equal(t, "36", rec.Answers["age"])

	require.Len(t, f.hooked, 1)
	assert.Equal(t, rec.ID, f.hooked[0].ID)
}

func TestPipeline_Submit_SequentialDuplicate(t *testing.T) {
	f := newFixture(t, openDeadline)

	first, err := f.pipeline.Submit(context.Background(), validAttempt())
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	again := validAttempt()
	again.Email = "  ADA@example.com"

	_, err = f.pipeline.Submit(context.Background(), again)

	require.ErrorIs(t, err, ErrDuplicateSubmission)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Record.SubmittedAt, dup.SubmittedAt)
	assert.Equal(t, week.Bucket{Week: 5, Year: 2025}, dup.Bucket)
	assert.Len(t, f.store.apps, 1)
	assert.Len(t, f.hooked, 1)
}

func TestPipeline_Submit_NextWeekIsNotDuplicate(t *testing.T) {
	f := newFixture(t, openDeadline.AddDate(0, 0, 14))

	_, err := f.pipeline.Submit(context.Background(), validAttempt())
	require.NoError(t, err)

	f.clock.Advance(week.Length)
	res, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.NoError(t, err)
	assert.Equal(t, 6, res.Record.WeekNumber)
}

func TestPipeline_Submit_PhotoFailureDegrades(t *testing.T) {
	f := newFixture(t, openDeadline)
	f.uploader.UploadFunc = func(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error) {
		return "", errors.New("storage unavailable")
	}

	res, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.EqualError(t, res.PhotoErr, "storage unavailable")
	assert.Nil(t, res.Record.PhotoURL)
	require.Len(t, f.store.apps, 1)
	assert.Nil(t, f.store.apps[0].PhotoURL)
}

func TestPipeline_Submit_NoPhoto(t *testing.T) {
	f := newFixture(t, openDeadline)
	called := false
	f.uploader.UploadFunc = func(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error) {
		called = true
		return "", nil
	}
	a := validAttempt()
	a.Photo = nil

	res, err := f.pipeline.Submit(context.Background(), a)

	require.NoError(t, err)
	assert.False(t, called)
	assert.False(t, res.Degraded())
	assert.Nil(t, res.Record.PhotoURL)
}

func TestPipeline_Submit_WindowClosed(t *testing.T) {
	f := newFixture(t, testNow)

	a := validAttempt()
	a.Email = "not even an email"
	_, err := f.pipeline.Submit(context.Background(), a)

	assert.ErrorIs(t, err, ErrWindowClosed)
	assert.Zero(t, f.store.findCalls)
	assert.Empty(t, f.store.apps)
}

func TestPipeline_Submit_UniqueViolationIsDuplicate(t *testing.T) {
	f := newFixture(t, openDeadline)
	winnerAt := testNow.Add(-time.Second)

	lookups := 0
	f.store.FindFunc = func(ctx context.Context, email string, b week.Bucket) (*store.Application, error) {
		lookups++
		if lookups == 1 {
			// the concurrent request has not committed yet
			return nil, store.ErrNotFound
		}
		return &store.Application{Email: email, SubmittedAt: winnerAt}, nil
	}
	f.store.InsertFunc = func(ctx context.Context, app *store.Application) error {
		return uniqueViolation()
	}

	_, err := f.pipeline.Submit(context.Background(), validAttempt())

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, winnerAt, dup.SubmittedAt)
	assert.Empty(t, f.hooked)
}

func TestPipeline_Submit_DuplicateCheckBackendError(t *testing.T) {
	f := newFixture(t, openDeadline)
	f.store.FindFunc = func(ctx context.Context, email string, b week.Bucket) (*store.Application, error) {
		return nil, &store.Error{Op: "find application", Kind: apperrors.KindNetwork, Err: &net.OpError{Op: "dial", Err: errBoom}}
	}

	_, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateSubmission)
	assert.Equal(t, apperrors.KindNetwork, store.KindOf(err))
	assert.Empty(t, f.store.apps)
}

func TestPipeline_Submit_InsertBackendError(t *testing.T) {
	f := newFixture(t, openDeadline)
	f.store.InsertFunc = func(ctx context.Context, app *store.Application) error {
		return &store.Error{Op: "insert application", Kind: apperrors.KindPermission, Err: errBoom}
	}

	_, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermission, store.KindOf(err))
	assert.Empty(t, f.hooked)
}

func TestPipeline_Submit_HookFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t, openDeadline)
	f.pipeline.AddHook(HookFunc{HookName: "broken", Fn: func(ctx context.Context, app store.Application) error {
		return errBoom
	}})

	res, err := f.pipeline.Submit(context.Background(), validAttempt())

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Len(t, f.hooked, 1)
}

func TestPipeline_Submit_IPFallbacks(t *testing.T) {
	f := newFixture(t, openDeadline)
	f.pipeline.ip = nil

	a := validAttempt()
	res, err := f.pipeline.Submit(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "unknown", *res.Record.ClientIP)

	b := validAttempt()
	b.Email = "grace@example.com"
	b.ClientIPHint = "203.0.113.5"
	res, err = f.pipeline.Submit(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", *res.Record.ClientIP)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "accepted", outcomeOf(&Result{}, nil))
	assert.Equal(t, "degraded", outcomeOf(&Result{PhotoErr: errBoom}, nil))
	assert.Equal(t, "window_closed", outcomeOf(nil, ErrWindowClosed))
	assert.Equal(t, "duplicate", outcomeOf(nil, &DuplicateError{}))
	assert.Equal(t, "invalid", outcomeOf(nil, &ValidationError{}))
	assert.Equal(t, "failed", outcomeOf(nil, errBoom))
}
