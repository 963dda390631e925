// Package admin serves the read side of the admin panel: listings, weekly
// stats and the dashboard summary.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"
	"weekly-intake/internal/window"

	"github.com/redis/go-redis/v9"
)

const DefaultRecentLimit = 10

// ErrSearchDisabled is returned by Search when no index is configured.
var ErrSearchDisabled = errors.New("SEARCH_DISABLED")

type Store interface {
	ListApplications(ctx context.Context, year int, weekNumber *int) ([]store.Application, error)
	ListBuckets(ctx context.Context, year int) ([]week.Bucket, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, year int) ([]store.Application, error)
}

type WindowChecker interface {
	Current(ctx context.Context) window.Snapshot
}

type Config struct {
	StatsCacheTTL time.Duration // 0 disables the cache
	RecentLimit   int
}

type Deps struct {
	Store  Store
	Redis  *redis.Client // optional
	Search Searcher      // optional
	Window WindowChecker
	Calc   week.Calculator
	Clock  week.Clock
	Logger logger.Logger
	Config Config
}

type Service struct {
	store  Store
	cache  *statsCache
	search Searcher
	window WindowChecker
	calc   week.Calculator
	clock  week.Clock
	logger logger.Logger
	recent int
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = week.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.NewNoOpLogger()
	}
	if d.Config.RecentLimit <= 0 {
		d.Config.RecentLimit = DefaultRecentLimit
	}
	log := d.Logger.WithFields(map[string]interface{}{"component": "admin"})

	var cache *statsCache
	if d.Redis != nil && d.Config.StatsCacheTTL > 0 {
		cache = &statsCache{redis: d.Redis, ttl: d.Config.StatsCacheTTL, logger: log}
	}

	return &Service{
		store:  d.Store,
		cache:  cache,
		search: d.Search,
		window: d.Window,
		calc:   d.Calc,
		clock:  d.Clock,
		logger: log,
		recent: d.Config.RecentLimit,
	}
}

func (s *Service) year(year int) int {
	if year > 0 {
		return year
	}
	return s.calc.Bucket(s.clock.Now()).Year
}

// ListApplications returns the year's applications newest first, restricted
// to weekNumber when it is non-nil. A zero year means the current one.
func (s *Service) ListApplications(ctx context.Context, weekNumber *int, year int) ([]store.Application, error) {
	apps, err := s.store.ListApplications(ctx, s.year(year), weekNumber)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Filter keeps the records matching weekNumber and year. Zero means no
// filter on that field.
func Filter(records []store.Application, weekNumber, year int) []store.Application {
	out := make([]store.Application, 0, len(records))
	for _, r := range records {
		if weekNumber != 0 && r.WeekNumber != weekNumber {
			continue
		}
		if year != 0 && r.Year != year {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Recent returns up to limit applications from the current week, newest
// first. limit <= 0 uses the configured default.
func (s *Service) Recent(ctx context.Context, limit int) ([]store.Application, error) {
	if limit <= 0 {
		limit = s.recent
	}
	b := s.calc.Bucket(s.clock.Now())
	apps, err := s.store.ListApplications(ctx, b.Year, &b.Week)
	if err != nil {
		return nil, fmt.Errorf("recent applications: %w", err)
	}
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

// Search runs a full-text query over names, emails and answers.
func (s *Service) Search(ctx context.Context, query string, year int) ([]store.Application, error) {
	if s.search == nil {
		return nil, ErrSearchDisabled
	}
	return s.search.Search(ctx, query, s.year(year))
}

// Dashboard is the admin landing view.
type Dashboard struct {
	Stats     Stats               `json:"stats"`
	Week      week.Bucket         `json:"week"`
	State     window.State        `json:"state"`
	Deadline  time.Time           `json:"deadline"`
	TimeLeft  string              `json:"timeLeft"`
	Questions store.QuestionSet   `json:"questions"`
	Recent    []store.Application `json:"recent"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	snap := s.window.Current(ctx)

	stats, err := s.Stats(ctx, 0)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:     *stats,
		Week:      s.calc.Bucket(snap.Now),
		State:     snap.State,
		Deadline:  snap.Questions.Deadline,
		TimeLeft:  snap.TimeLeft,
		Questions: snap.Questions.QuestionSet,
		Recent:    recent,
	}, nil
}
