package aggregate

import (
	"fmt"
	"time"

	"survey-analytics-service/internal/domain"
)

type windowKind int

const (
	windowToday windowKind = iota
	windowDays
	windowHours
)

// Window is a named time range ending at a reference "now".
type Window struct {
	kind windowKind
	n    int
}

var (
	// Today spans local midnight through now, both inclusive.
	Today = Window{kind: windowToday}
	// Last7Days spans now-7d through now, both inclusive.
	Last7Days = Window{kind: windowDays, n: 7}
	// Last30Days spans now-30d through now, both inclusive.
	Last30Days = Window{kind: windowDays, n: 30}
)

// LastHours spans [now-n h, now), half-open so adjacent hour windows never share an event.
func LastHours(n int) Window {
	return Window{kind: windowHours, n: n}
}

func (w Window) String() string {
	switch w.kind {
	case windowToday:
		return "today"
	case windowDays:
		return fmt.Sprintf("last-%d-days", w.n)
	default:
		return fmt.Sprintf("last-%d-hours", w.n)
	}
}

// Start returns the window's lower bound for the given reference time.
func (w Window) Start(now time.Time, loc *time.Location) time.Time {
	switch w.kind {
	case windowToday:
		if loc == nil {
			loc = time.UTC
		}
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case windowDays:
		return now.AddDate(0, 0, -w.n)
	default:
		return now.Add(-time.Duration(w.n) * time.Hour)
	}
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t, now time.Time, loc *time.Location) bool {
	start := w.Start(now, loc)
	if t.Before(start) {
		return false
	}
	if w.kind == windowHours {
		return t.Before(now)
	}
	return !t.After(now)
}

// CountInWindow counts the timestamps falling inside w.
func CountInWindow(timestamps []time.Time, now time.Time, loc *time.Location, w Window) int {
	count := 0
	for _, t := range timestamps {
		if w.Contains(t, now, loc) {
			count++
		}
	}
	return count
}

// HourlyBuckets returns exactly hours buckets, oldest first, where bucket i covers
// [now-(hours-i)h, now-(hours-i-1)h). Empty buckets are included.
func HourlyBuckets(timestamps []time.Time, now time.Time, loc *time.Location, hours int) []domain.TrendBucket {
	if hours <= 0 {
		return []domain.TrendBucket{}
	}
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([]domain.TrendBucket, hours)
	for i := range buckets {
		start := now.Add(-time.Duration(hours-i) * time.Hour)
		buckets[i] = domain.TrendBucket{
			Label: start.In(loc).Format("15") + ":00",
			Start: start,
		}
	}
	for _, t := range timestamps {
		d := now.Sub(t)
		if d <= 0 {
			continue
		}
		// d in ((k)h, (k+1)h] lands k buckets before the newest one.
		k := int((d - 1) / time.Hour)
		if k >= hours {
			continue
		}
		buckets[hours-1-k].Count++
	}
	return buckets
}
