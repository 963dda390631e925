// Package store persists applications and weekly question sets in Postgres.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	apperrors "weekly-intake/internal/common/errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("NOT_FOUND")

// Error is a backend failure with its classified kind.
type Error struct {
	Op   string
	Kind apperrors.PersistenceKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the persistence kind of err, or KindGeneric.
func KindOf(err error) apperrors.PersistenceKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return apperrors.KindGeneric
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) apperrors.PersistenceKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42501":
			return apperrors.KindPermission
		case pqErr.Code.Class() == "28":
			return apperrors.KindAuth
		case pqErr.Code.Class() == "23":
			return apperrors.KindDuplicate
		case pqErr.Code.Class() == "08",
			pqErr.Code == "3D000", // database does not exist
			pqErr.Code == "42P01": // schema not installed
			return apperrors.KindConnection
		default:
			return apperrors.KindGeneric
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.KindNetwork
	}

	return apperrors.KindGeneric
}

// Answers maps a question or demographic key to the applicant's text.
type Answers map[string]string

var leadingKeys = []string{"question1", "question2", "question3"}

// Keys returns question1..question3 first, then the remaining keys sorted.
func (a Answers) Keys() []string {
	keys := make([]string, 0, len(a))
	seen := make(map[string]bool, len(leadingKeys))
	for _, k := range leadingKeys {
		if _, ok := a[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	rest := make([]string, 0, len(a))
	for k := range a {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Answers) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Answers{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("answers: unsupported type %T", src)
	}
	out := Answers{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("answers: %w", err)
	}
	*a = out
	return nil
}

// Application is one accepted submission. Records are never updated.
type Application struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	WeekNumber  int       `json:"weekNumber"`
	Year        int       `json:"year"`
	SubmittedAt time.Time `json:"submittedAt"`
	PhotoURL    *string   `json:"photoUrl"`
	Answers     Answers   `json:"answers"`
	ClientIP    *string   `json:"clientIp,omitempty"`
}

// QuestionSet is the configured question list for one week bucket.
type QuestionSet struct {
	ID         string    `json:"id"`
	WeekNumber int       `json:"weekNumber"`
	Year       int       `json:"year"`
	Question1  string    `json:"question1"`
	Question2  string    `json:"question2"`
	Question3  string    `json:"question3,omitempty"`
	Deadline   time.Time `json:"deadline"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NormalizeEmail is the dedup form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
