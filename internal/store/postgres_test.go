package store

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/week"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appCols = []string{"id", "full_name", "email", "week_number", "year", "submitted_at", "photo_url", "answers", "client_ip"}

var questionCols = []string{"id", "week_number", "year", "question1", "question2", "question3", "deadline", "is_active", "created_at"}

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestFindApplication_Found(t *testing.T) {
	p, mock := newMock(t)
	submitted := time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM applications\s+WHERE lower\(email\) = \$1 AND week_number = \$2 AND year = \$3`).
		WithArgs("ada@example.com", 5, 2025).
		WillReturnRows(sqlmock.NewRows(appCols).AddRow(
			"app-1", "Ada", "Ada@Example.com", 5, 2025, submitted,
			nil, []byte(`{"question1":"because"}`), "203.0.113.9",
		))

	app, err := p.FindApplication(context.Background(), "  Ada@Example.com ", week.Bucket{Week: 5, Year: 2025})

	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, submitted, app.SubmittedAt)
	assert.Nil(t, app.PhotoURL)
	require.NotNil(t, app.ClientIP)
	assert.Equal(t, "203.0.113.9", *app.ClientIP)
	assert.Equal(t, "because", app.Answers["question1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApplication_NoRowsIsNotFound(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM applications`).
		WithArgs("ada@example.com", 5, 2025).
		WillReturnError(sql.ErrNoRows)

	_, err := p.FindApplication(context.Background(), "ada@example.com", week.Bucket{Week: 5, Year: 2025})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertApplication_UniqueViolation(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs("app-1", "Ada", "ada@example.com", 5, 2025, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "unknown").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	ip := "unknown"
	err := p.InsertApplication(context.Background(), &Application{
		ID:          "app-1",
		FullName:    "Ada",
		Email:       "ada@example.com",
		WeekNumber:  5,
		Year:        2025,
		SubmittedAt: time.Now().UTC(),
		Answers:     Answers{"question1": "a"},
		ClientIP:    &ip,
	})

	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, apperrors.KindDuplicate, KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_WeekFilter(t *testing.T) {
	p, mock := newMock(t)
	wk := 2

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE year = \$1 AND week_number = \$2 ORDER BY submitted_at DESC`).
		WithArgs(2025, 2).
		WillReturnRows(sqlmock.NewRows(appCols).
			AddRow("b", "Bo", "bo@example.com", 2, 2025, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "https://cdn/x.png", []byte(`{}`), nil).
			AddRow("a", "Al", "al@example.com", 2, 2025, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), nil, []byte(`{}`), nil))

	apps, err := p.ListApplications(context.Background(), 2025, &wk)

	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "b", apps[0].ID)
	require.NotNil(t, apps[0].PhotoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_AllWeeks(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE year = \$1 ORDER BY submitted_at DESC`).
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows(appCols))

	apps, err := p.ListApplications(context.Background(), 2025, nil)

	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBuckets(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(`SELECT week_number, year FROM applications WHERE year = \$1`).
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"week_number", "year"}).
			AddRow(1, 2025).AddRow(1, 2025).AddRow(2, 2025))

	buckets, err := p.ListBuckets(context.Background(), 2025)

	require.NoError(t, err)
	assert.Equal(t, []week.Bucket{{Week: 1, Year: 2025}, {Week: 1, Year: 2025}, {Week: 2, Year: 2025}}, buckets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveQuestions_NewestFirst(t *testing.T) {
	p, mock := newMock(t)
	deadline := time.Date(2025, 2, 9, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery(`FROM weekly_questions\s+WHERE week_number = \$1 AND year = \$2 AND is_active = true\s+ORDER BY created_at DESC\s+LIMIT 1`).
		WithArgs(5, 2025).
		WillReturnRows(sqlmock.NewRows(questionCols).
			AddRow("q-2", 5, 2025, "Q1", "Q2", nil, deadline, true, time.Now()))

	qs, err := p.FindActiveQuestions(context.Background(), week.Bucket{Week: 5, Year: 2025})

	require.NoError(t, err)
	assert.Equal(t, "q-2", qs.ID)
	assert.Empty(t, qs.Question3)
	assert.Equal(t, deadline, qs.Deadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQuestions_EmptyQuestion3IsNull(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO weekly_questions`).
		WithArgs("q-1", 5, 2025, "Q1", "Q2", nil, sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := p.InsertQuestions(context.Background(), &QuestionSet{
		ID: "q-1", WeekNumber: 5, Year: 2025, Question1: "Q1", Question2: "Q2",
		Deadline: time.Now(), IsActive: true, CreatedAt: time.Now(),
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS applications_email_week_uniq`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS applications_year_week_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS weekly_questions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS weekly_questions_active_idx`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.PersistenceKind
	}{
		{"connection exception", &pq.Error{Code: "08006"}, apperrors.KindConnection},
		{"missing table", &pq.Error{Code: "42P01"}, apperrors.KindConnection},
		{"bad password", &pq.Error{Code: "28P01"}, apperrors.KindAuth},
		{"insufficient privilege", &pq.Error{Code: "42501"}, apperrors.KindPermission},
		{"check violation", &pq.Error{Code: "23514"}, apperrors.KindDuplicate},
		{"dial failure", &net.OpError{Op: "dial", Err: errors.New("refused")}, apperrors.KindNetwork},
		{"deadline", context.DeadlineExceeded, apperrors.KindNetwork},
		{"bad conn", sql.ErrConnDone, apperrors.KindConnection},
		{"other", errors.New("boom"), apperrors.KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(wrap("op", tt.err)))
		})
	}
}

func TestAnswers_KeysOrder(t *testing.T) {
	a := Answers{"zip": "1", "question2": "b", "age": "30", "question1": "a"}

	assert.Equal(t, []string{"question1", "question2", "age", "zip"}, a.Keys())
}
