package intake

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"weekly-intake/internal/week"
)

var (
	// ErrWindowClosed means the weekly deadline has passed. It is an expected
	// outcome that routes the applicant to the closed view.
	ErrWindowClosed = errors.New("WINDOW_CLOSED")

	// ErrDuplicateSubmission matches every *DuplicateError.
	ErrDuplicateSubmission = errors.New("DUPLICATE_SUBMISSION")

	ErrValidation = errors.New("VALIDATION_FAILED")

	ErrSessionClosed = errors.New("SESSION_CLOSED")
)

// DuplicateError reports that the applicant already has an accepted
// application in the bucket. SubmittedAt is that application's timestamp;
// it is zero when the winning row could not be re-read.
type DuplicateError struct {
	Email       string
	Bucket      week.Bucket
	SubmittedAt time.Time
}

func (e *DuplicateError) Error() string {
	if e.SubmittedAt.IsZero() {
		return fmt.Sprintf("%s: %s already applied for %s", ErrDuplicateSubmission, e.Email, e.Bucket.Key())
	}
	return fmt.Sprintf("%s: %s already applied for %s at %s",
		ErrDuplicateSubmission, e.Email, e.Bucket.Key(), e.SubmittedAt.Format(time.RFC3339))
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateSubmission
}

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

// ValidationError carries per-field messages. It is recovered by the form,
// never shown as a modal.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(keys, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
