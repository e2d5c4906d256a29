package timewindow

import (
	"reflect"
	"testing"
	"time"

	"tasksync/internal/types"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func testMatcher() *Matcher {
	m := NewMatcher(7, 30, 90)
	m.Now = fixedNow
	return m
}

func TestExtractDates(t *testing.T) {
	context := `Discussed on 2025-06-10.
[2025-06-12 09:15] follow-up message
📅 2025-06-01
Also 2025-06-10 again, and some noise 123-45-6789.`

	got := ExtractDates(context)
	want := []string{"2025-06-01", "2025-06-10", "2025-06-12"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractDates = %v, want %v", got, want)
	}
}

func TestExtractDatesEmpty(t *testing.T) {
	if got := ExtractDates("no dates here"); len(got) != 0 {
		t.Errorf("expected no dates, got %v", got)
	}
}

func TestCenterForPrefersContextDates(t *testing.T) {
	m := testMatcher()
	task := &types.Task{
		ID:              "t1",
		FreeContext:     "mentioned 2025-06-20 and earlier 2025-06-05",
		OccurrenceDates: []string{"2025-01-01"},
	}

	center := m.CenterFor(task)
	want := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	if !center.Equal(want) {
		t.Errorf("center = %v, want %v", center, want)
	}
}

func TestCenterForFallsBackToOccurrenceDates(t *testing.T) {
	m := testMatcher()
	task := &types.Task{
		ID:              "t1",
		FreeContext:     "no dates",
		OccurrenceDates: []string{"2025-03-10", "2025-02-01"},
	}

	center := m.CenterFor(task)
	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if !center.Equal(want) {
		t.Errorf("center = %v, want %v", center, want)
	}
}

func TestCenterForDefaultsToNow(t *testing.T) {
	m := testMatcher()
	center := m.CenterFor(&types.Task{ID: "t1"})
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !center.Equal(want) {
		t.Errorf("center = %v, want %v", center, want)
	}
}

func TestWindowsNested(t *testing.T) {
	m := testMatcher()
	center := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	w := m.Windows(center)

	if got := w.Primary.From; !got.Equal(center.AddDate(0, 0, -7)) {
		t.Errorf("primary from = %v", got)
	}
	if got := w.Distant.To; !got.Equal(center.AddDate(0, 0, 90)) {
		t.Errorf("distant to = %v", got)
	}
	if w.Primary.From.Before(w.Extended.From) || w.Extended.From.Before(w.Distant.From) {
		t.Error("windows are not nested")
	}
}

func TestWindowBoundariesInclusive(t *testing.T) {
	m := testMatcher()
	w := m.Windows(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	edge := time.Date(2025, 6, 22, 23, 59, 0, 0, time.UTC) // exactly +7 days
	if !w.Primary.Contains(edge) {
		t.Error("window boundary should be inclusive")
	}
	outside := time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC)
	if w.Primary.Contains(outside) {
		t.Error("day past the boundary should be excluded")
	}
}

func TestPartitionNarrowestWindowWins(t *testing.T) {
	m := testMatcher()
	w := m.Windows(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	pool := []*types.Task{
		{ID: "near", CreatedAt: "2025-06-14T12:00:00.000Z"},
		{ID: "mid", CreatedAt: "2025-05-25T12:00:00.000Z"},
		{ID: "far", CreatedAt: "2025-04-01T12:00:00.000Z"},
		{ID: "out", CreatedAt: "2024-01-01T12:00:00.000Z"},
		{ID: "undated"},
	}

	part := m.Partition(pool, w)

	if len(part.Primary) != 1 || part.Primary[0].ID != "near" {
		t.Errorf("primary = %v", ids(part.Primary))
	}
	if len(part.Extended) != 1 || part.Extended[0].ID != "mid" {
		t.Errorf("extended = %v", ids(part.Extended))
	}
	if len(part.Distant) != 1 || part.Distant[0].ID != "far" {
		t.Errorf("distant = %v", ids(part.Distant))
	}
}

func TestPartitionUsesModifiedAtFallback(t *testing.T) {
	m := testMatcher()
	w := m.Windows(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	pool := []*types.Task{
		{ID: "a", CreatedAt: "2020-01-01T00:00:00.000Z", ModifiedAt: "2025-06-14T00:00:00.000Z"},
	}

	part := m.Partition(pool, w)
	if len(part.Primary) != 1 {
		t.Fatalf("expected modified_at to qualify the task, got %v", ids(part.Primary))
	}
}

func TestPartitionDisjoint(t *testing.T) {
	m := testMatcher()
	w := m.Windows(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

	pool := []*types.Task{
		{ID: "a", CreatedAt: "2025-06-15T00:00:00.000Z"},
		{ID: "b", CreatedAt: "2025-06-01T00:00:00.000Z"},
		{ID: "c", CreatedAt: "2025-04-01T00:00:00.000Z"},
	}

	part := m.Partition(pool, w)
	seen := make(map[string]int)
	for _, task := range part.Primary {
		seen[task.ID]++
	}
	for _, task := range part.Extended {
		seen[task.ID]++
	}
	for _, task := range part.Distant {
		seen[task.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("task %s appears in %d windows", id, n)
		}
	}
}

func TestParseDateFormats(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-06-15T10:30:00.000Z", true},
		{"2025-06-15T10:30:00Z", true},
		{"2025-06-15T10:30:00", true},
		{"2025-06-15", true},
		{"", false},
		{"not-a-date", false},
	}
	for _, tc := range cases {
		if _, ok := ParseDate(tc.in); ok != tc.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
	}
}

func ids(tasks []*types.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}
