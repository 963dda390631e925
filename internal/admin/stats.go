package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"

	"github.com/redis/go-redis/v9"
)

// Stats summarises one year. WeeklyBreakdown is keyed by week.Bucket.Key.
type Stats struct {
	Year            int            `json:"year"`
	Week            int            `json:"week"`
	TotalThisYear   int            `json:"totalThisYear"`
	ThisWeek        int            `json:"thisWeek"`
	WeeklyBreakdown map[string]int `json:"weeklyBreakdown"`
}

// Aggregate counts buckets. current selects the ThisWeek count.
func Aggregate(year int, current week.Bucket, buckets []week.Bucket) Stats {
	st := Stats{
		Year:            year,
		Week:            current.Week,
		WeeklyBreakdown: map[string]int{},
	}
	for _, b := range buckets {
		if b.Year != year {
			continue
		}
		st.TotalThisYear++
		st.WeeklyBreakdown[b.Key()]++
		if b == current {
			st.ThisWeek++
		}
	}
	return st
}

// Stats aggregates the year from one full-year fetch. A zero year means the
// current one. Results are cached when Redis is configured.
func (s *Service) Stats(ctx context.Context, year int) (*Stats, error) {
	year = s.year(year)
	current := s.calc.Bucket(s.clock.Now())

	if s.cache != nil {
		if st, ok := s.cache.get(ctx, year, current.Week); ok {
			return st, nil
		}
	}

	buckets, err := s.store.ListBuckets(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st := Aggregate(year, current, buckets)

	if s.cache != nil {
		s.cache.set(ctx, &st)
	}
	return &st, nil
}

// Invalidate drops the cached stats for year.
func (s *Service) Invalidate(ctx context.Context, year int) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.del(ctx, year)
}

// InvalidateHook drops the cached stats after every accepted submission.
func (s *Service) InvalidateHook() intake.Hook {
	return intake.HookFunc{
		HookName: "stats_cache",
		Fn: func(ctx context.Context, app store.Application) error {
			return s.Invalidate(ctx, app.Year)
		},
	}
}

type statsCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func statsKey(year int) string {
	return "intake:stats:" + strconv.Itoa(year)
}

// get treats an entry computed during another week as a miss, since
// ThisWeek would be stale.
func (c *statsCache) get(ctx context.Context, year, currentWeek int) (*Stats, bool) {
	val, err := c.redis.Get(ctx, statsKey(year)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.AdminStatsCache.WithLabelValues("error").Inc()
			c.logger.Warn("stats cache read failed", map[string]interface{}{
				"year":  year,
				"error": err,
			})
			return nil, false
		}
		metrics.AdminStatsCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var st Stats
	if err := json.Unmarshal([]byte(val), &st); err != nil || st.Week != currentWeek {
		metrics.AdminStatsCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.AdminStatsCache.WithLabelValues("hit").Inc()
	return &st, true
}

func (c *statsCache) set(ctx context.Context, st *Stats) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, statsKey(st.Year), string(data), c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", map[string]interface{}{
			"year":  st.Year,
			"error": err,
		})
	}
}

func (c *statsCache) del(ctx context.Context, year int) error {
	if err := c.redis.Del(ctx, statsKey(year)).Err(); err != nil {
		return fmt.Errorf("invalidate stats cache: %w", err)
	}
	return nil
}
