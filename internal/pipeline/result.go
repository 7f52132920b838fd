package pipeline

import (
	"sync"
	"time"
)

// Status is the outcome of one task execution.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Output is one file written by a task.
type Output struct {
	Path string // project-relative, slash-separated
	Size int64
}

// Result records one task execution.
type Result struct {
	Task     string
	Kind     Kind
	Status   Status
	Outputs  []Output
	Err      error
	Duration time.Duration
}

// Report aggregates the results of one Runner.Run call.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	mu      sync.Mutex
	results []Result
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Results returns the recorded results in completion order.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// Result returns the most recent result for task.
func (r *Report) Result(task string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].Task == task {
			return r.results[i], true
		}
	}
	return Result{}, false
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Result
	for _, res := range r.results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}
