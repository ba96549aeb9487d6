package watch

import (
	"sort"
	"sync"
	"time"
)

// Result is the outcome of one binding run.
type Result struct {
	Binding  string
	Trigger  string
	Started  time.Time
	Duration time.Duration
	Err      error
	Runs     int
	Failures int
}

// OK reports whether the run succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Status keeps the last result of every binding. It is safe for concurrent
// use.
type Status struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewStatus creates an empty status board.
func NewStatus() *Status {
	return &Status{results: make(map[string]Result)}
}

// Record stores r as the latest result of its binding.
func (s *Status) Record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.results[r.Binding]
	r.Runs = prev.Runs + 1
	r.Failures = prev.Failures
	if r.Err != nil {
		r.Failures++
	}
	s.results[r.Binding] = r
}

// Last returns the latest result of binding.
func (s *Status) Last(binding string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[binding]
	return r, ok
}

// Results returns every latest result ordered by binding name.
func (s *Status) Results() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Binding < results[j].Binding })
	return results
}
