// Package types defines the shared task records exchanged between the
// extraction pipelines and the matching engine.
package types

// Source identifies which collection a task came from.
type Source string

const (
	SourceChat Source = "chat" // derived from chat transcripts
	SourcePM   Source = "pm"   // exported from the PM tool
)

// Status is the coarse completion state of a task.
type Status string

const (
	StatusDone    Status = "done"
	StatusPending Status = "pending"
	StatusUnknown Status = "unknown"
)

// Task is a source-agnostic task record. Fields that only make sense for one
// source are left zero for the other. All dates are ISO strings (YYYY-MM-DD,
// or full RFC3339 timestamps for PM tool fields); empty string means unset.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// FreeContext is the raw surrounding text a chat-derived task was
	// extracted from; date evidence for time windows is mined from it.
	FreeContext     string   `json:"context,omitempty"`
	OccurrenceDates []string `json:"occurrence_dates,omitempty"`
	Status          Status   `json:"status,omitempty"`
	Assignee        string   `json:"assignee,omitempty"`
	Source          Source   `json:"source"`

	// Chat-derived extras.
	Chats            []string `json:"chats,omitempty"`
	DiscussionThread string   `json:"discussion_thread,omitempty"`

	// PM tool extras.
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
	DueOn      string `json:"due_on,omitempty"`
	Completed  bool   `json:"completed,omitempty"`
}

// Match is one accepted pairing between a chat-derived task (A) and a PM tool
// task (B) with the score that accepted it.
type Match struct {
	A     *Task   `json:"a"`
	B     *Task   `json:"b"`
	Score float64 `json:"score"`
}

// MatchResult partitions both input pools: every input id appears either in
// Matches or in its side's unmatched list, never both. Each B id appears in
// at most one match.
type MatchResult struct {
	Matches []Match  `json:"matches"`
	OnlyInA []string `json:"only_in_a"`
	OnlyInB []string `json:"only_in_b"`
}

// MatchedIDs returns the matched id sets for both sides.
func (r *MatchResult) MatchedIDs() (a map[string]bool, b map[string]bool) {
	a = make(map[string]bool, len(r.Matches))
	b = make(map[string]bool, len(r.Matches))
	for _, m := range r.Matches {
		a[m.A.ID] = true
		b[m.B.ID] = true
	}
	return a, b
}
