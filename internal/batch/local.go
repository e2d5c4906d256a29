package batch

import (
	"fmt"
	"sync"

	"tasksync/internal/logging"
)

// LocalSubmitter satisfies Submitter by running prompts synchronously against
// a Generator. It stands in for a remote bulk API when the provider has no
// batch endpoint; jobs complete on the first poll.
type LocalSubmitter struct {
	gen Generator

	mu   sync.Mutex
	seq  int
	jobs map[string]map[string]string
}

// NewLocalSubmitter creates a local submitter over gen.
func NewLocalSubmitter(gen Generator) *LocalSubmitter {
	return &LocalSubmitter{gen: gen, jobs: make(map[string]map[string]string)}
}

func (l *LocalSubmitter) Submit(prompts map[string]string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	id := fmt.Sprintf("local-%d", l.seq)
	stored := make(map[string]string, len(prompts))
	for k, v := range prompts {
		stored[k] = v
	}
	l.jobs[id] = stored
	return id, nil
}

func (l *LocalSubmitter) Poll(jobID string) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.jobs[jobID]; !ok {
		return "", fmt.Errorf("unknown job %s", jobID)
	}
	return StateCompleted, nil
}

func (l *LocalSubmitter) Results(jobID string) (map[string]string, error) {
	l.mu.Lock()
	prompts, ok := l.jobs[jobID]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}

	results := make(map[string]string, len(prompts))
	for key, prompt := range prompts {
		out, err := l.gen.Generate(prompt)
		if err != nil {
			logging.Debug("batch", "local job %s key %s failed: %v", jobID, key, err)
			continue
		}
		results[key] = out
	}
	return results, nil
}
