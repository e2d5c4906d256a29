// Package batch drives long-running bulk completion jobs through an explicit
// state machine. The remote side may take minutes to hours, so all waiting
// goes through an injected Clock and the runner never spins on wall time
// directly.
package batch

import (
	"fmt"
	"time"

	"tasksync/internal/logging"
)

// State is a batch job's lifecycle stage.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

// Clock abstracts time for the runner so tests drive it synthetically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Submitter is the remote bulk-completion API. Submit returns a job id;
// Poll reports the remote state; Results returns one response per prompt,
// keyed the same way the prompts were.
type Submitter interface {
	Submit(prompts map[string]string) (string, error)
	Poll(jobID string) (State, error)
	Results(jobID string) (map[string]string, error)
}

// Job is the record of one batch run.
type Job struct {
	ID          string
	State       State
	SubmittedAt time.Time
	ResolvedAt  time.Time
}

// Runner submits prompts as one batch job and polls it to resolution.
type Runner struct {
	api          Submitter
	clock        Clock
	pollInterval time.Duration
	timeout      time.Duration
}

// NewRunner creates a runner. Zero pollInterval defaults to 10s, zero timeout
// to 24h (the usual provider batch window).
func NewRunner(api Submitter, clock Clock, pollInterval, timeout time.Duration) *Runner {
	if clock == nil {
		clock = SystemClock{}
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &Runner{api: api, clock: clock, pollInterval: pollInterval, timeout: timeout}
}

// Run submits the prompts and blocks until the job resolves. It returns the
// per-key responses on completion; a failed, expired, or timed-out job is an
// error and the caller decides how to degrade.
func (r *Runner) Run(prompts map[string]string) (map[string]string, *Job, error) {
	if len(prompts) == 0 {
		return map[string]string{}, nil, nil
	}

	jobID, err := r.api.Submit(prompts)
	if err != nil {
		return nil, nil, fmt.Errorf("submit batch: %w", err)
	}

	job := &Job{ID: jobID, State: StateSubmitted, SubmittedAt: r.clock.Now()}
	logging.Info("batch", "job %s submitted with %d prompts", jobID, len(prompts))

	deadline := job.SubmittedAt.Add(r.timeout)
	job.State = StatePolling

	for {
		if r.clock.Now().After(deadline) {
			job.State = StateExpired
			job.ResolvedAt = r.clock.Now()
			return nil, job, fmt.Errorf("batch job %s timed out after %s", jobID, r.timeout)
		}

		state, err := r.api.Poll(jobID)
		if err != nil {
			// Transient poll errors are absorbed; the deadline bounds them.
			logging.Warn("batch", "poll %s: %v", jobID, err)
			r.clock.Sleep(r.pollInterval)
			continue
		}

		switch state {
		case StateCompleted:
			job.State = StateCompleted
			job.ResolvedAt = r.clock.Now()
			results, err := r.api.Results(jobID)
			if err != nil {
				return nil, job, fmt.Errorf("fetch batch results %s: %w", jobID, err)
			}
			logging.Info("batch", "job %s completed with %d results", jobID, len(results))
			return results, job, nil

		case StateFailed:
			job.State = StateFailed
			job.ResolvedAt = r.clock.Now()
			return nil, job, fmt.Errorf("batch job %s failed", jobID)

		case StateExpired:
			job.State = StateExpired
			job.ResolvedAt = r.clock.Now()
			return nil, job, fmt.Errorf("batch job %s expired", jobID)

		default:
			r.clock.Sleep(r.pollInterval)
		}
	}
}
