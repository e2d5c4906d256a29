// Package report turns a reconciliation result into a coverage analysis:
// how much of what was discussed in chat actually exists in the PM tool, and
// in what state.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tasksync/internal/extractor"
	"tasksync/internal/types"
)

// Implementation status buckets for matched tasks.
const (
	StatusCompletedInPM  = "completed_in_pm"
	StatusInProgressInPM = "in_progress_in_pm"
	StatusNotStartedInPM = "not_started_in_pm"
)

// Summary is the headline numbers of one run.
type Summary struct {
	TotalChatTasks     int     `json:"total_chat_tasks"`
	TotalPMTasks       int     `json:"total_pm_tasks"`
	MatchedTasks       int     `json:"matched_tasks"`
	ChatOnly           int     `json:"chat_only"`
	PMOnly             int     `json:"pm_only"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// MatchDetail is one matched pair with enough context to review by hand.
type MatchDetail struct {
	ChatTitle       string  `json:"chat_title"`
	PMTitle         string  `json:"pm_title"`
	PMID            string  `json:"pm_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Status          string  `json:"implementation_status"`
	PMSummary       string  `json:"pm_summary"`
	PMHasNotes      bool    `json:"pm_has_notes"`
}

// Coverage is the per-status breakdown of the matched set.
type Coverage struct {
	ByStatus map[string]int `json:"implementation_status"`
	Details  []MatchDetail  `json:"detailed_matches"`
}

// Report is the full persisted artifact of one reconciliation run.
type Report struct {
	RunID     string   `json:"run_id"`
	Timestamp string   `json:"timestamp"`
	Summary   Summary  `json:"summary"`
	Coverage  Coverage `json:"coverage_analysis"`
	ChatOnly  []string `json:"chat_only_ids"`
	PMOnly    []string `json:"pm_only_ids"`
}

// Generate builds the report for a run. The extractor supplies the PM-side
// summaries shown in match details.
func Generate(result *types.MatchResult, chatTasks, pmTasks []*types.Task, extract *extractor.Extractor) *Report {
	r := &Report{
		RunID:     uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Coverage: Coverage{
			ByStatus: map[string]int{
				StatusCompletedInPM:  0,
				StatusInProgressInPM: 0,
				StatusNotStartedInPM: 0,
			},
		},
		ChatOnly: append([]string(nil), result.OnlyInA...),
		PMOnly:   append([]string(nil), result.OnlyInB...),
	}

	for _, m := range result.Matches {
		status := implementationStatus(m.B)
		r.Coverage.ByStatus[status]++

		ctx := extract.Extract(m.B)
		summary := ctx.Summary
		if len(summary) > 300 {
			summary = summary[:300]
		}

		r.Coverage.Details = append(r.Coverage.Details, MatchDetail{
			ChatTitle:       m.A.Title,
			PMTitle:         m.B.Title,
			PMID:            m.B.ID,
			SimilarityScore: m.Score,
			Status:          status,
			PMSummary:       summary,
			PMHasNotes:      ctx.HasNotes,
		})
	}

	matched := len(result.Matches)
	totalChat := len(chatTasks)
	r.Summary = Summary{
		TotalChatTasks: totalChat,
		TotalPMTasks:   len(pmTasks),
		MatchedTasks:   matched,
		ChatOnly:       len(result.OnlyInA),
		PMOnly:         len(result.OnlyInB),
	}
	if totalChat > 0 {
		r.Summary.CoveragePercentage = float64(matched) / float64(totalChat) * 100
	}

	return r
}

// implementationStatus buckets a matched PM task.
func implementationStatus(pm *types.Task) string {
	switch {
	case pm.Completed || pm.Status == types.StatusDone:
		return StatusCompletedInPM
	case pm.Status == types.StatusPending:
		return StatusInProgressInPM
	default:
		return StatusNotStartedInPM
	}
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
