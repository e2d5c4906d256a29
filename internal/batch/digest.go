package batch

import (
	"fmt"
	"strings"

	"tasksync/internal/logging"
	"tasksync/internal/types"
)

// Generator produces a text completion for a prompt. Used as the direct
// fallback path when a batch job does not resolve.
type Generator interface {
	Generate(prompt string) (string, error)
}

// TaskSummarizer produces per-task digests through the batch runner, falling
// back to direct generation when the batch path fails.
type TaskSummarizer struct {
	runner *Runner
	gen    Generator
}

// NewTaskSummarizer creates a summarizer. gen may be nil to disable the
// direct fallback.
func NewTaskSummarizer(runner *Runner, gen Generator) *TaskSummarizer {
	return &TaskSummarizer{runner: runner, gen: gen}
}

// Summarize returns a digest per task id. Tasks without enough text to digest
// are skipped. Failures degrade: a dead batch falls back to direct calls, and
// tasks whose direct call also fails are simply absent from the result.
func (ts *TaskSummarizer) Summarize(tasks []*types.Task) (map[string]string, error) {
	prompts := make(map[string]string)
	for _, task := range tasks {
		if prompt := digestPrompt(task); prompt != "" {
			prompts[task.ID] = prompt
		}
	}
	if len(prompts) == 0 {
		return map[string]string{}, nil
	}

	results, job, err := ts.runner.Run(prompts)
	if err == nil {
		return results, nil
	}
	if job != nil {
		logging.Warn("batch", "digest job %s resolved %s: %v", job.ID, job.State, err)
	} else {
		logging.Warn("batch", "digest batch not submitted: %v", err)
	}

	if ts.gen == nil {
		return nil, fmt.Errorf("task digests: %w", err)
	}

	// Direct fallback, one call per task.
	results = make(map[string]string, len(prompts))
	for id, prompt := range prompts {
		digest, genErr := ts.gen.Generate(prompt)
		if genErr != nil {
			logging.Debug("batch", "direct digest failed for %s: %v", id, genErr)
			continue
		}
		results[id] = digest
	}
	return results, nil
}

// digestPrompt builds the digest request for one task, or "" when the task
// has no long-form text worth digesting.
func digestPrompt(task *types.Task) string {
	body := strings.TrimSpace(task.Description)
	if body == "" {
		body = strings.TrimSpace(task.FreeContext)
	}
	if body == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("Summarize this task into a short digest: what it is about, ")
	b.WriteString("what has been decided, and what remains to be done. Keep names and dates.\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n%s", task.Title, body)
	return b.String()
}
