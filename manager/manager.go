// Package manager implements the Pipeline Manager: a multi-job scheduler
// with a configurable global concurrency, status tracking, cooperative
// cancellation, and completion waits. It knows nothing about crawling,
// fetching, or storage — the actual work of a job is injected as a
// RunFunc, following a pattern of constructor-injected collaborators
// rather than module-level singletons.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/docreef/docreef/clock"
	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/idgen"
)

// Status is one of the job lifecycle states.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Progress is a mutable snapshot updated by the running RunFunc via
// Job.SetProgress, readable by GetJob without additional locking beyond
// the job's own mutex.
type Progress struct {
	PagesProcessed int
	PagesFailed    int
	PagesQueued    int
}

// Job is one scheduled crawl job.
type Job struct {
	ID        string
	Library   string
	Version   string
	SeedURL   string
	Options   any // crawl/pipeline options, opaque to the manager
	CreatedAt time.Time

	mu         sync.Mutex
	status     Status
	startedAt  *time.Time
	finishedAt *time.Time
	err        error
	progress   Progress

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

// Status returns the job's current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Progress returns a copy of the job's current progress snapshot.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Err returns the job's terminal error, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// StartedAt / FinishedAt report lifecycle timestamps, nil until reached.
func (j *Job) StartedAt() *time.Time  { j.mu.Lock(); defer j.mu.Unlock(); return j.startedAt }
func (j *Job) FinishedAt() *time.Time { j.mu.Lock(); defer j.mu.Unlock(); return j.finishedAt }

// SetProgress is called by the injected RunFunc to publish progress.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// Cancelled reports whether cancellation has been requested for this job;
// a RunFunc should also watch its ctx, which the manager cancels when
// cancellation is requested (Done() closes only after the RunFunc returns).
func (j *Job) Cancelled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Config controls the Manager's scheduling model.
type Config struct {
	// MaxConcurrency bounds the number of jobs running simultaneously
	// across the whole manager (distinct from a single job's own
	// max_concurrency over its crawl workers). Default 3.
	MaxConcurrency int
	Logger         *slog.Logger
	Clock          clock.Clock
	IDGen          idgen.Generator
}

func (c *Config) defaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clock.System
	}
	if c.IDGen == nil {
		c.IDGen = idgen.UUIDv7()
	}
}

// RunFunc performs the actual crawl for a job. It must honor ctx
// cancellation and job.Cancelled() at every suspension point.
type RunFunc func(ctx context.Context, job *Job) error

// Manager is the Pipeline Manager. Only the status-transition and queue
// critical sections are mutex-protected; the manager does not serialize
// all operations behind one lock.
type Manager struct {
	cfg Config
	run RunFunc
	sem chan struct{}

	mu   sync.RWMutex
	jobs map[string]*Job
}

// New creates a Manager. run is invoked once per enqueued job, gated by
// the manager's concurrency semaphore.
func New(cfg Config, run RunFunc) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:  cfg,
		run:  run,
		sem:  make(chan struct{}, cfg.MaxConcurrency),
		jobs: make(map[string]*Job),
	}
}

// Enqueue submits a new crawl job. If wait is true, Enqueue blocks until
// the job reaches a terminal state before returning.
func (m *Manager) Enqueue(ctx context.Context, library, ver, seedURL string, opts any, wait bool) (*Job, error) {
	if seedURL == "" {
		return nil, errs.New(errs.ValidationError, "seed_url is required")
	}
	job := &Job{
		ID:        m.cfg.IDGen(),
		Library:   library,
		Version:   ver,
		SeedURL:   seedURL,
		Options:   opts,
		CreatedAt: m.cfg.Clock.Now(),
		status:    StatusQueued,
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.runJob(ctx, job)

	if wait {
		<-job.Done()
	}
	return job, nil
}

func (m *Manager) runJob(ctx context.Context, job *Job) {
	select {
	case m.sem <- struct{}{}:
	case <-job.cancel:
		job.setStatus(StatusCancelled)
		close(job.done)
		return
	}
	defer func() { <-m.sem }()

	// A cancellation requested while still queued short-circuits before
	// any work starts.
	select {
	case <-job.cancel:
		job.setStatus(StatusCancelled)
		close(job.done)
		return
	default:
	}

	now := m.cfg.Clock.Now()
	job.mu.Lock()
	job.startedAt = &now
	job.status = StatusRunning
	job.mu.Unlock()

	runCtx, cancelRunCtx := context.WithCancel(ctx)
	defer cancelRunCtx()
	go func() {
		select {
		case <-job.cancel:
			job.setStatus(StatusCancelling)
			cancelRunCtx()
		case <-runCtx.Done():
		}
	}()

	err := m.run(runCtx, job)

	final := StatusCompleted
	switch {
	case job.Cancelled():
		final = StatusCancelled
		err = nil
	case err != nil:
		final = StatusFailed
	}

	finishedAt := m.cfg.Clock.Now()
	job.mu.Lock()
	job.status = final
	job.finishedAt = &finishedAt
	job.err = err
	job.mu.Unlock()

	close(job.done)
}

// GetJob returns the job record for id, or nil if unknown.
func (m *Manager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns jobs sorted by created_at, optionally filtered by
// status.
func (m *Manager) ListJobs(status *Status) []*Job {
	m.mu.RLock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if status == nil || j.Status() == *status {
			out = append(out, j)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// FindByLibVersion returns jobs matching (library, version), optionally
// filtered further by status.
func (m *Manager) FindByLibVersion(library, ver string, status *Status) []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Job
	for _, j := range m.jobs {
		if j.Library == library && j.Version == ver && (status == nil || j.Status() == *status) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// CancelJob requests cancellation of job id. Idempotent on terminal jobs:
// cancelling one returns success=false with an explanatory message rather
// than an error. CancelJob suspends until the worker acknowledges
// cancelling (transitions out of queued/running), not until the job
// reaches a terminal state.
func (m *Manager) CancelJob(id string) (success bool, message string, err error) {
	job := m.GetJob(id)
	if job == nil {
		return false, "", errs.New(errs.JobNotFound, fmt.Sprintf("job %q not found", id))
	}

	if job.Status().terminal() {
		return false, fmt.Sprintf("job %q already %s", id, job.Status()), nil
	}

	job.cancelOnce.Do(func() { close(job.cancel) })

	// Wait for the scheduler to acknowledge: either the job has left
	// "queued"/"running" (now cancelling) or has already terminated
	// outright (e.g. it was still queued).
	for {
		st := job.Status()
		if st != StatusQueued && st != StatusRunning {
			return true, fmt.Sprintf("job %q cancellation requested", id), nil
		}
		select {
		case <-job.Done():
			return true, fmt.Sprintf("job %q cancelled before starting", id), nil
		case <-time.After(time.Millisecond):
		}
	}
}

// WaitForJob blocks until job id reaches a terminal state.
func (m *Manager) WaitForJob(ctx context.Context, id string) (*Job, error) {
	job := m.GetJob(id)
	if job == nil {
		return nil, errs.New(errs.JobNotFound, fmt.Sprintf("job %q not found", id))
	}
	select {
	case <-job.Done():
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ClearCompleted removes every terminal job record and returns the count
// removed.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, j := range m.jobs {
		if j.Status().terminal() {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}
