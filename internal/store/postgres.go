package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"weekly-intake/internal/week"
)

const applicationColumns = `id, full_name, email, week_number, year, submitted_at, photo_url, answers, client_ip`

const questionColumns = `id, week_number, year, question1, question2, question3, deadline, is_active, created_at`

// Postgres implements the application and question tables over database/sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var (
		app      Application
		photoURL sql.NullString
		clientIP sql.NullString
	)
	err := row.Scan(
		&app.ID,
		&app.FullName,
		&app.Email,
		&app.WeekNumber,
		&app.Year,
		&app.SubmittedAt,
		&photoURL,
		&app.Answers,
		&clientIP,
	)
	if err != nil {
		return nil, err
	}
	if photoURL.Valid {
		app.PhotoURL = &photoURL.String
	}
	if clientIP.Valid {
		app.ClientIP = &clientIP.String
	}
	return &app, nil
}

// FindApplication returns the earliest application for email in bucket, or
// ErrNotFound.
func (p *Postgres) FindApplication(ctx context.Context, email string, bucket week.Bucket) (*Application, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE lower(email) = $1 AND week_number = $2 AND year = $3
		ORDER BY submitted_at ASC
		LIMIT 1`,
		NormalizeEmail(email), bucket.Week, bucket.Year,
	)
	app, err := scanApplication(row)
	if err != nil {
		return nil, wrap("find application", err)
	}
	return app, nil
}

// InsertApplication stores app. A unique violation surfaces as a *Error of
// kind duplicate; check it with IsUniqueViolation.
func (p *Postgres) InsertApplication(ctx context.Context, app *Application) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		app.ID,
		app.FullName,
		app.Email,
		app.WeekNumber,
		app.Year,
		app.SubmittedAt,
		nullable(app.PhotoURL),
		app.Answers,
		nullable(app.ClientIP),
	)
	return wrap("insert application", err)
}

// ListApplications returns year's applications, newest first. A nil
// weekNumber lists every week.
func (p *Postgres) ListApplications(ctx context.Context, year int, weekNumber *int) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE year = $1`
	args := []interface{}{year}
	if weekNumber != nil {
		query += ` AND week_number = $2`
		args = append(args, *weekNumber)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list applications", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, wrap("scan application", err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list applications", err)
	}
	return apps, nil
}

// ListBuckets returns the (week, year) of every application in year.
func (p *Postgres) ListBuckets(ctx context.Context, year int) ([]week.Bucket, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT week_number, year FROM applications WHERE year = $1`, year)
	if err != nil {
		return nil, wrap("list buckets", err)
	}
	defer rows.Close()

	buckets := []week.Bucket{}
	for rows.Next() {
		var b week.Bucket
		if err := rows.Scan(&b.Week, &b.Year); err != nil {
			return nil, wrap("scan bucket", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list buckets", err)
	}
	return buckets, nil
}

// FindActiveQuestions returns the newest active set for bucket, or ErrNotFound.
func (p *Postgres) FindActiveQuestions(ctx context.Context, bucket week.Bucket) (*QuestionSet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+questionColumns+`
		FROM weekly_questions
		WHERE week_number = $1 AND year = $2 AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1`,
		bucket.Week, bucket.Year,
	)

	var (
		qs        QuestionSet
		question3 sql.NullString
	)
	err := row.Scan(
		&qs.ID,
		&qs.WeekNumber,
		&qs.Year,
		&qs.Question1,
		&qs.Question2,
		&question3,
		&qs.Deadline,
		&qs.IsActive,
		&qs.CreatedAt,
	)
	if err != nil {
		return nil, wrap("find active questions", err)
	}
	qs.Question3 = question3.String
	return &qs, nil
}

// InsertQuestions stores qs as given.
func (p *Postgres) InsertQuestions(ctx context.Context, qs *QuestionSet) error {
	var question3 interface{}
	if strings.TrimSpace(qs.Question3) != "" {
		question3 = qs.Question3
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO weekly_questions (`+questionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		qs.ID,
		qs.WeekNumber,
		qs.Year,
		qs.Question1,
		qs.Question2,
		question3,
		qs.Deadline,
		qs.IsActive,
		qs.CreatedAt,
	)
	return wrap("insert questions", err)
}

// Ping reports whether the database answers.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", wrap("ping", err))
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
