// Package week maps instants to the weekly submission buckets.
//
// Week numbers are an ordinal count of seven-day blocks since January 1st
// local midnight: floor(elapsed / 7d) + 1. They are NOT ISO-8601 weeks and
// drift against Monday-aligned calendars; stored records depend on this
// numbering, so it must not be changed.
package week

import (
	"fmt"
	"sync"
	"time"
)

const Length = 7 * 24 * time.Hour

// Bucket identifies one weekly submission cycle.
type Bucket struct {
	Week int `json:"weekNumber"`
	Year int `json:"year"`
}

// Key renders the bucket as "<year>-W<week>", the admin breakdown key.
func (b Bucket) Key() string {
	return fmt.Sprintf("%d-W%d", b.Year, b.Week)
}

// Calculator evaluates week boundaries in a fixed location.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a Calculator for loc. A nil loc means time.Local.
func NewCalculator(loc *time.Location) Calculator {
	if loc == nil {
		loc = time.Local
	}
	return Calculator{loc: loc}
}

func (c Calculator) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// CurrentWeek returns the ordinal week of now within its year, starting at 1.
func (c Calculator) CurrentWeek(now time.Time) int {
	now = now.In(c.Location())
	jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, c.Location())
	return int(now.Sub(jan1)/Length) + 1
}

// Bucket returns the (week, year) pair for now.
func (c Calculator) Bucket(now time.Time) Bucket {
	now = now.In(c.Location())
	return Bucket{Week: c.CurrentWeek(now), Year: now.Year()}
}

// WeekStart returns the most recent Sunday 00:00:00.000 on or before now.
func (c Calculator) WeekStart(now time.Time) time.Time {
	now = now.In(c.Location())
	return time.Date(now.Year(), now.Month(), now.Day()-int(now.Weekday()), 0, 0, 0, 0, c.Location())
}

// WeekDeadline returns WeekStart(now) + 7 days at 23:59:59.999, which is the
// Sunday after the one closing the current week. Existing question sets were
// created against this offset.
func (c Calculator) WeekDeadline(now time.Time) time.Time {
	start := c.WeekStart(now)
	return time.Date(start.Year(), start.Month(), start.Day()+7, 23, 59, 59, int(999*time.Millisecond), c.Location())
}

// TimeLeft formats the countdown to deadline for the admin dashboard.
func TimeLeft(now, deadline time.Time) string {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return "Expired"
	}

	days := int(diff / (24 * time.Hour))
	hours := int(diff%(24*time.Hour)) / int(time.Hour)
	minutes := int(diff%time.Hour) / int(time.Minute)

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable Clock for tests and replays.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (f *FixedClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *FixedClock) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

func (f *FixedClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}
