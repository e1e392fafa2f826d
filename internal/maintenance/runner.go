package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/branchledger/pkg/logger"
)

const defaultInterval = 24 * time.Hour

// Recorder receives per-job outcomes.
type Recorder interface {
	Track(worker string, start time.Time, err error)
}

type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  Recorder
	Interval time.Duration
}

// Runner executes every registered job once per interval while holding the
// lock. A failing job does not stop the others.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  Recorder
	interval time.Duration
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run blocks until ctx is canceled. The first cycle starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.cycleAndLog(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.cycleAndLog(ctx)
		}
	}
}

func (r *Runner) cycleAndLog(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logg.Error(ctx, "maintenance.cycle_failed", err)
	}
}

// RunOnce runs a single cycle. It returns nil without running anything when
// another instance holds the lock.
func (r *Runner) RunOnce(ctx context.Context) error {
	held, err := r.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		r.logg.Info(ctx, "maintenance.cycle_skipped_locked")
		return nil
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.logg.Error(ctx, "maintenance.lock_release_failed", err)
		}
	}()

	for _, job := range r.registry.Jobs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.runJob(ctx, job)
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	jobCtx := r.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(jobCtx)
	if r.metrics != nil {
		r.metrics.Track("maintenance:"+job.Name(), start, err)
	}
	jobCtx = r.logg.WithField(jobCtx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		r.logg.Error(jobCtx, "maintenance.job_failed", err)
		return
	}
	r.logg.Info(jobCtx, "maintenance.job_done")
}
