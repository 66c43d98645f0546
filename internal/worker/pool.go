// Package worker runs independent jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// SkippedResult stands in for a job that never started because the context
// was canceled first.
type SkippedResult struct {
	Err error
}

func (r *SkippedResult) GetError() error { return r.Err }

// Pool executes jobs with at most workers running at once
type Pool struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes every job and returns one result per job, in job order.
// Jobs still queued when ctx is canceled are not started and yield a
// *SkippedResult carrying the context error.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup

	workers := min(p.workers, len(jobs))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if err := ctx.Err(); err != nil {
					results[i] = &SkippedResult{Err: err}
					continue
				}
				results[i] = jobs[i].Execute(ctx)
			}
		}()
	}

	for i := range jobs {
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

// ResultCollector accumulates results reported from several goroutines
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of the collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Failed counts the collected results that carry an error
func (c *ResultCollector) Failed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.results {
		if r.GetError() != nil {
			n++
		}
	}
	return n
}
