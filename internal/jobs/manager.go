// Package jobs deduplicates audits by fingerprint and caches their outcome.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/ppiankov/promessa/internal/cache"
	"github.com/ppiankov/promessa/internal/model"
)

// Work computes the report for one job.
type Work func(ctx context.Context) (*model.AuditReport, error)

// Observer receives lifecycle events: created, joined, cached, completed, failed.
type Observer func(event string)

// Error kinds recorded on failed jobs.
const (
	KindExtraction = "extraction_unavailable"
	KindInvalid    = "invalid_input"
	KindTimeout    = "timeout"
	KindInternal   = "internal"
)

// Options configures a Manager.
type Options struct {
	ResultTTL time.Duration
	FailedTTL time.Duration
	Timeout   time.Duration // bounds one computation
	Results   cache.Cache   // terminal jobs; defaults to an in-memory cache
	Observer  Observer
	Logger    *slog.Logger
}

type flight struct {
	job   model.AuditJob
	owner string
	done  chan struct{}
}

// Manager holds the fingerprint to in-flight job map. It is the only
// structure written by concurrent submitters; terminal jobs move to the
// results cache and expire there.
type Manager struct {
	mu       sync.Mutex
	inflight map[string]*flight

	results   cache.Cache
	resultTTL time.Duration
	failedTTL time.Duration
	timeout   time.Duration
	observe   Observer
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewManager creates a job manager.
func NewManager(opts Options) *Manager {
	def := model.DefaultConfig().Jobs
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = def.ResultTTL
	}
	if opts.FailedTTL <= 0 {
		opts.FailedTTL = def.FailedTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Results == nil {
		opts.Results = cache.NewMemoryCache(opts.ResultTTL, time.Minute)
	}
	if opts.Observer == nil {
		opts.Observer = func(string) {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		inflight:  make(map[string]*flight),
		results:   opts.Results,
		resultTTL: opts.ResultTTL,
		failedTTL: opts.FailedTTL,
		timeout:   opts.Timeout,
		observe:   opts.Observer,
		logger:    opts.Logger.With("component", "jobs"),
		now:       time.Now,
	}
}

func resultKey(fingerprint string) string {
	return cache.Key("job", fingerprint)
}

// Submit returns the in-flight job for fingerprint, or its cached terminal
// job while that is still fresh, or starts work as a new job. The work runs
// detached from ctx so that a departing submitter never cancels a job other
// callers are waiting on.
func (m *Manager) Submit(ctx context.Context, fingerprint string, work Work) model.AuditJob {
	m.mu.Lock()
	if f, ok := m.inflight[fingerprint]; ok {
		job := f.job
		m.mu.Unlock()
		m.observe("joined")
		return job
	}

	var cached model.AuditJob
	if cache.GetJSON(m.results, resultKey(fingerprint), &cached) {
		m.mu.Unlock()
		m.observe("cached")
		return cached
	}

	f := &flight{
		job: model.AuditJob{
			ID:          ulid.Make().String(),
			Fingerprint: fingerprint,
			Status:      model.JobPending,
			CreatedAt:   m.now().UTC(),
		},
		owner: uuid.NewString(),
		done:  make(chan struct{}),
	}
	m.inflight[fingerprint] = f
	job := f.job
	m.wg.Add(1)
	m.mu.Unlock()

	m.observe("created")
	m.logger.Debug("job created", "id", job.ID, "fingerprint", fingerprint)

	go m.run(context.WithoutCancel(ctx), f, f.owner, work)
	return job
}

func (m *Manager) run(parent context.Context, f *flight, token string, work Work) {
	defer m.wg.Done()

	if !m.transition(f, token, model.JobPending, model.JobProcessing) {
		return
	}

	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()

	report, err := m.execute(ctx, work)
	m.finish(f, token, report, err)
}

func (m *Manager) execute(ctx context.Context, work Work) (report *model.AuditReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	report, err = work(ctx)
	if err == nil && report == nil {
		err = errors.New("no report produced")
	}
	return report, err
}

// transition moves f from one state to another only on behalf of its owner.
func (m *Manager) transition(f *flight, token string, from, to model.JobStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.owner != token || f.job.Status != from {
		return false
	}
	f.job.Status = to
	return true
}

func (m *Manager) finish(f *flight, token string, report *model.AuditReport, err error) {
	m.mu.Lock()
	if f.owner != token || f.job.Status != model.JobProcessing {
		m.mu.Unlock()
		return
	}

	completed := m.now().UTC()
	f.job.CompletedAt = &completed
	ttl := m.resultTTL
	if err != nil {
		f.job.Status = model.JobFailed
		f.job.Error = err.Error()
		f.job.ErrorKind = errorKind(err)
		ttl = m.failedTTL
	} else {
		f.job.Status = model.JobCompleted
		f.job.Result = report
	}

	if cerr := cache.SetJSON(m.results, resultKey(f.job.Fingerprint), f.job, ttl); cerr != nil {
		m.logger.Warn("failed to cache job result", "id", f.job.ID, "error", cerr)
	}
	if m.inflight[f.job.Fingerprint] == f {
		delete(m.inflight, f.job.Fingerprint)
	}
	job := f.job
	close(f.done)
	m.mu.Unlock()

	if err != nil {
		m.observe("failed")
		m.logger.Warn("job failed", "id", job.ID, "kind", job.ErrorKind, "error", err)
		return
	}
	m.observe("completed")
	m.logger.Debug("job completed", "id", job.ID, "verdict", report.Verdict)
}

// Status returns the in-flight or cached job for fingerprint.
func (m *Manager) Status(fingerprint string) (model.AuditJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.inflight[fingerprint]; ok {
		return f.job, nil
	}
	var job model.AuditJob
	if cache.GetJSON(m.results, resultKey(fingerprint), &job) {
		return job, nil
	}
	return model.AuditJob{}, fmt.Errorf("%w: %s", model.ErrJobNotFound, fingerprint)
}

// Wait blocks until the job for fingerprint is terminal or ctx ends. When
// ctx ends first it returns the latest snapshot together with ctx.Err().
func (m *Manager) Wait(ctx context.Context, fingerprint string) (model.AuditJob, error) {
	m.mu.Lock()
	f, ok := m.inflight[fingerprint]
	m.mu.Unlock()
	if !ok {
		return m.Status(fingerprint)
	}

	select {
	case <-f.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return f.job, nil
	case <-ctx.Done():
		m.mu.Lock()
		defer m.mu.Unlock()
		return f.job, ctx.Err()
	}
}

// Run submits work and waits for it; it is the synchronous path used by the CLI.
func (m *Manager) Run(ctx context.Context, fingerprint string, work Work) (*model.AuditReport, error) {
	job := m.Submit(ctx, fingerprint, work)
	if !job.Status.Terminal() {
		var err error
		job, err = m.Wait(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
	}
	if job.Status == model.JobFailed {
		return nil, Err(job)
	}
	return job.Result, nil
}

// InFlight returns the number of pending or processing jobs.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Drain waits for every started job to finish or ctx to end.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err rebuilds a classifiable error from a failed job.
func Err(job model.AuditJob) error {
	if job.Status != model.JobFailed {
		return nil
	}
	switch job.ErrorKind {
	case KindExtraction:
		return fmt.Errorf("%w: %w: %s", model.ErrJobFailed, model.ErrExtractionUnavailable, job.Error)
	case KindInvalid:
		return fmt.Errorf("%w: %w: %s", model.ErrJobFailed, model.ErrInvalidInput, job.Error)
	case KindTimeout:
		return fmt.Errorf("%w: %w: %s", model.ErrJobFailed, context.DeadlineExceeded, job.Error)
	default:
		return fmt.Errorf("%w: %s", model.ErrJobFailed, job.Error)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrExtractionUnavailable):
		return KindExtraction
	case errors.Is(err, model.ErrInvalidInput):
		return KindInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}
