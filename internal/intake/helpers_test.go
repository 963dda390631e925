package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/questions"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"
	"weekly-intake/internal/window"

	"github.com/lib/pq"
)

// 2025-01-29 12:00 UTC is ordinal week 5; the default deadline is
// 2025-02-02 23:59:59.999.
var testNow = time.Date(2025, time.January, 29, 12, 0, 0, 0, time.UTC)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// memStore enforces the same uniqueness rule as the database index.
type memStore struct {
	mu        sync.Mutex
	apps      []store.Application
	findCalls int

	FindFunc   func(ctx context.Context, email string, b week.Bucket) (*store.Application, error)
	InsertFunc func(ctx context.Context, app *store.Application) error
}

func (m *memStore) FindApplication(ctx context.Context, email string, b week.Bucket) (*store.Application, error) {
	m.mu.Lock()
	m.findCalls++
	m.mu.Unlock()
	if m.FindFunc != nil {
		return m.FindFunc(ctx, email, b)
	}
	return m.find(email, b)
}

func (m *memStore) find(email string, b week.Bucket) (*store.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apps {
		app := m.apps[i]
		if store.NormalizeEmail(app.Email) == store.NormalizeEmail(email) && app.WeekNumber == b.Week && app.Year == b.Year {
			return &app, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) InsertApplication(ctx context.Context, app *store.Application) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, app)
	}
	return m.insert(app)
}

func (m *memStore) insert(app *store.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.apps {
		if strings.EqualFold(existing.Email, app.Email) && existing.WeekNumber == app.WeekNumber && existing.Year == app.Year {
			return uniqueViolation()
		}
	}
	m.apps = append(m.apps, *app)
	return nil
}

func uniqueViolation() error {
	return &store.Error{
		Op:   "insert application",
		Kind: apperrors.KindDuplicate,
		Err:  &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"},
	}
}

type MockUploader struct {
	UploadFunc func(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error)
}

func (m *MockUploader) Upload(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error) {
	return m.UploadFunc(ctx, b, now, p)
}

type MockResolver struct {
	ip string
}

func (m MockResolver) Resolve(ctx context.Context, hint string) string {
	if hint != "" {
		return hint
	}
	return m.ip
}

type fixedQuestions struct {
	set questions.Set
}

func (f fixedQuestions) GetActive(ctx context.Context) questions.Set { return f.set }

func questionSet(deadline time.Time, withQ3 bool) questions.Set {
	set := questions.Set{QuestionSet: store.QuestionSet{
		WeekNumber: 5,
		Year:       2025,
		Question1:  "Why?",
		Question2:  "How?",
		Deadline:   deadline,
		IsActive:   true,
	}}
	if withQ3 {
		set.Question3 = "What else?"
	}
	return set
}

type fixture struct {
	clock    *week.FixedClock
	store    *memStore
	uploader *MockUploader
	pipeline *Pipeline
	window   *window.Window
	hooked   []store.Application
}

func newFixture(t *testing.T, deadline time.Time) *fixture {
	f := &fixture{
		clock: week.NewFixedClock(testNow),
		store: &memStore{},
		uploader: &MockUploader{UploadFunc: func(ctx context.Context, b week.Bucket, now time.Time, p photos.Photo) (string, error) {
			return "https://storage.test/" + photos.ObjectPath(b, now, "tok", photos.Extension(p.FileName, p.ContentType)), nil
		}},
	}
	f.window = window.New(fixedQuestions{set: questionSet(deadline, true)}, f.clock)
	f.pipeline = NewPipeline(Deps{
		Window: f.window,
		Store:  f.store,
		Photos: f.uploader,
		IP:     MockResolver{ip: "198.51.100.1"},
		Calc:   week.NewCalculator(time.UTC),
		Clock:  f.clock,
		Logger: newTestLogger(t),
		Hooks: []Hook{HookFunc{HookName: "record", Fn: func(ctx context.Context, app store.Application) error {
			f.hooked = append(f.hooked, app)
			return nil
		}}},
	})
	return f
}

func validAttempt() Attempt {
	return Attempt{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Answers: store.Answers{
			"question1": "Curiosity",
			"question2": "Engines",
			"question3": "Teaching",
			"age":       "36",
		},
		Photo: &photos.Photo{
			Data:        []byte("\x89PNG fake"),
			FileName:    "ada.png",
			ContentType: "image/png",
		},
	}
}

var errBoom = errors.New("boom")
