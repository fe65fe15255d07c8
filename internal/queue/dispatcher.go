// Package queue drives durable jobs from the store through a fixed worker
// pool. The queue substrate retries transient processing errors with
// exponential backoff; what "processing" means is the handler's business.
package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tetraminz/persona_panel/internal/store"
)

const (
	// DefaultWorkers bounds in-flight evaluations.
	DefaultWorkers = 5
	// DefaultMaxAttempts is the per-job attempt budget.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase seeds the exponential retry delay: 2s, 4s, ...
	DefaultBackoffBase = 2 * time.Second

	defaultPollInterval = 250 * time.Millisecond
)

// Handler processes one claimed job. A returned error means the attempt
// failed and the job should be retried or retired; recorded business
// outcomes (including failed evaluations) return nil.
type Handler func(ctx context.Context, job store.Job) error

// DeadHandler runs once when a job exhausts its attempt budget.
type DeadHandler func(job store.Job, lastErr error)

// JobStore is the slice of the store the dispatcher needs.
type JobStore interface {
	ClaimDueJobs(limit int, now time.Time) ([]store.Job, error)
	MarkJobDone(jobID string) error
	RescheduleJob(jobID string, nextAttempt time.Time, lastError string) error
	MarkJobDead(jobID, lastError string) error
}

// Dispatcher polls for due jobs and fans them out to workers.
type Dispatcher struct {
	jobs        JobStore
	handler     Handler
	onDead      DeadHandler
	logger      *zap.Logger
	workers     int
	maxAttempts int
	backoffBase time.Duration
	poll        time.Duration
	now         func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithMaxAttempts overrides the per-job attempt budget.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoffBase overrides the retry delay seed (tests use ~0).
func WithBackoffBase(base time.Duration) Option {
	return func(d *Dispatcher) { d.backoffBase = base }
}

// WithPollInterval overrides how often the dispatcher looks for due jobs.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.poll = interval
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithDeadHandler installs the exhausted-job hook.
func WithDeadHandler(onDead DeadHandler) Option {
	return func(d *Dispatcher) { d.onDead = onDead }
}

// NewDispatcher builds a dispatcher with the default pool of 5 workers.
func NewDispatcher(jobs JobStore, handler Handler, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		jobs:        jobs,
		handler:     handler,
		logger:      logger,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		poll:        defaultPollInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is canceled. It returns ctx.Err() on shutdown so the
// caller can tell a drained stop from a crash.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		if err := d.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due jobs and processes it to completion.
// A claim failure is fatal (the store is broken); per-job handler errors
// are absorbed into reschedule/dead bookkeeping.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	jobs, err := d.jobs.ClaimDueJobs(d.workers, d.now())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			d.process(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, job store.Job) {
	err := d.handler(ctx, job)
	if err == nil {
		if markErr := d.jobs.MarkJobDone(job.ID); markErr != nil {
			d.logger.Error("mark job done failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return
	}

	if job.Attempts >= d.maxAttempts {
		d.logger.Error("job attempts exhausted",
			zap.String("job_id", job.ID),
			zap.String("judgment_id", job.JudgmentID),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
		if markErr := d.jobs.MarkJobDead(job.ID, err.Error()); markErr != nil {
			d.logger.Error("mark job dead failed", zap.String("job_id", job.ID), zap.Error(markErr))
			return
		}
		if d.onDead != nil {
			d.onDead(job, err)
		}
		return
	}

	delay := d.backoffBase << (job.Attempts - 1)
	d.logger.Warn("job attempt failed, rescheduling",
		zap.String("job_id", job.ID),
		zap.String("judgment_id", job.JudgmentID),
		zap.Int("attempt", job.Attempts),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	if markErr := d.jobs.RescheduleJob(job.ID, d.now().Add(delay), err.Error()); markErr != nil {
		d.logger.Error("reschedule job failed", zap.String("job_id", job.ID), zap.Error(markErr))
	}
}
