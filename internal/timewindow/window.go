// Package timewindow computes nested date ranges around a task's inferred
// occurrence date and partitions candidate pools by temporal plausibility.
package timewindow

import (
	"regexp"
	"sort"
	"time"

	"tasksync/internal/types"
)

// Window is an inclusive [From, To] date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t (normalized to a date) falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateToDate(t)
	return !d.Before(w.From) && !d.After(w.To)
}

// Windows are the three nested spans around one center date.
// primary ⊆ extended ⊆ distant by construction.
type Windows struct {
	Primary  Window
	Extended Window
	Distant  Window
}

// Partition holds pool tasks split by the narrowest window each qualifies
// for; no task appears in more than one slice.
type Partition struct {
	Primary  []*types.Task
	Extended []*types.Task
	Distant  []*types.Task
}

// Matcher computes windows with configurable radii.
type Matcher struct {
	PrimaryDays  int
	ExtendedDays int
	DistantDays  int

	// Now is injectable so tests can pin the fallback center date.
	Now func() time.Time
}

// NewMatcher creates a matcher with the given radii in days.
func NewMatcher(primary, extended, distant int) *Matcher {
	return &Matcher{
		PrimaryDays:  primary,
		ExtendedDays: extended,
		DistantDays:  distant,
		Now:          time.Now,
	}
}

// Recognized date evidence in free-text context: bare dates, bracketed
// timestamps, and the transcript day marker.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
	regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2})\s+\d{2}:\d{2}\]`),
	regexp.MustCompile(`📅\s*(\d{4}-\d{2}-\d{2})`),
}

// ExtractDates returns the distinct, sorted YYYY-MM-DD dates mentioned in a
// free-text context.
func ExtractDates(context string) []string {
	seen := make(map[string]bool)
	for _, pattern := range datePatterns {
		for _, m := range pattern.FindAllStringSubmatch(context, -1) {
			seen[m[1]] = true
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// CenterFor infers the window center for a task: the earliest date found in
// its free-text context, then its earliest recorded occurrence date, then
// the current date when no evidence exists.
func (m *Matcher) CenterFor(task *types.Task) time.Time {
	if dates := ExtractDates(task.FreeContext); len(dates) > 0 {
		if t, ok := ParseDate(dates[0]); ok {
			return t
		}
	}
	if len(task.OccurrenceDates) > 0 {
		sorted := append([]string(nil), task.OccurrenceDates...)
		sort.Strings(sorted)
		if t, ok := ParseDate(sorted[0]); ok {
			return t
		}
	}
	return truncateToDate(m.Now())
}

// Windows computes the three nested spans around a center date.
func (m *Matcher) Windows(center time.Time) Windows {
	center = truncateToDate(center)
	span := func(days int) Window {
		return Window{
			From: center.AddDate(0, 0, -days),
			To:   center.AddDate(0, 0, days),
		}
	}
	return Windows{
		Primary:  span(m.PrimaryDays),
		Extended: span(m.ExtendedDays),
		Distant:  span(m.DistantDays),
	}
}

// Partition assigns each pool task to the narrowest window containing its
// created_at or modified_at date (checked in that order). A task already
// placed in a narrower window is excluded from wider ones, so the slices are
// disjoint. Tasks with no parseable dates land nowhere.
func (m *Matcher) Partition(pool []*types.Task, w Windows) Partition {
	var part Partition
	seen := make(map[string]bool)

	place := func(window Window) []*types.Task {
		var out []*types.Task
		for _, task := range pool {
			if seen[task.ID] {
				continue
			}
			if taskInWindow(task, window) {
				seen[task.ID] = true
				out = append(out, task)
			}
		}
		return out
	}

	part.Primary = place(w.Primary)
	part.Extended = place(w.Extended)
	part.Distant = place(w.Distant)
	return part
}

// taskInWindow checks created_at first, then modified_at.
func taskInWindow(task *types.Task, w Window) bool {
	if t, ok := ParseDate(task.CreatedAt); ok && w.Contains(t) {
		return true
	}
	if t, ok := ParseDate(task.ModifiedAt); ok && w.Contains(t) {
		return true
	}
	return false
}

// parseFormats covers the PM tool's timestamp variants plus bare dates.
var parseFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO date or timestamp; empty or unrecognized input
// returns ok=false rather than an error since unset dates are routine.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range parseFormats {
		candidate := s
		if len(layout) < len(candidate) && layout != time.RFC3339 {
			candidate = candidate[:len(layout)]
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
