// Package jobqueue drives sync jobs through their state machine. A job for
// a (user, type) pair moves PENDING -> ON_PROGRESS -> deleted on success,
// with bounded retries on failure.
package jobqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/jobs"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
	"github.com/akvo/dws-datapro-sub000/internal/netx"
)

// MaxAttempt bounds retries before a job is recycled or deleted.
const MaxAttempt = 3

// Runner performs the actual sync work for one job type. The engine knows
// nothing about HTTP; it only starts runners and records their outcome.
type Runner interface {
	// HasPendingWork reports whether the user has anything left to sync
	// for this job type.
	HasPendingWork(ctx context.Context, userID int64) (bool, error)

	// Run performs the sync. It must respect ctx cancellation; a
	// deadline exceeded is reported back as an ordinary failure.
	Run(ctx context.Context, userID int64) error
}

// Engine serializes ticks per (user, jobType): heartbeats in-flight jobs,
// recycles or retires exhausted ones, and claims runnable jobs via
// compare-and-swap before starting their runner.
type Engine struct {
	jobs    jobs.Repository
	config  config.Repository
	network netx.Prober
	logger  logging.Logger

	runners map[models.JobType]Runner

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	succeeded map[string]bool
}

func NewEngine(js jobs.Repository, cfg config.Repository, network netx.Prober, logger logging.Logger) *Engine {
	return &Engine{
		jobs:    js,
		config:  cfg,
		network: network,
		logger:  logger,
		runners:   map[models.JobType]Runner{},
		locks:     map[string]*sync.Mutex{},
		succeeded: map[string]bool{},
	}
}

// Register binds a runner to a job type. Ticks for unregistered types fail.
func (e *Engine) Register(jobType models.JobType, runner Runner) {
	e.runners[jobType] = runner
}

func key(userID int64, jobType models.JobType) string {
	return fmt.Sprintf("%d/%s", userID, jobType)
}

// lockFor returns the mutex serializing all read-decide-write sequences for
// one (user, jobType) pair. Two overlapping ticks must never both observe
// PENDING and both activate.
func (e *Engine) lockFor(userID int64, jobType models.JobType) *sync.Mutex {
	k := key(userID, jobType)
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.locks[k]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.locks[k] = l
	return l
}

// setSucceeded records whether the last run for a slot completed. The flag
// backs the success status: a succeeded job leaves no row behind.
func (e *Engine) setSucceeded(userID int64, jobType models.JobType, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.succeeded[key(userID, jobType)] = true
		return
	}
	delete(e.succeeded, key(userID, jobType))
}

func (e *Engine) lastSucceeded(userID int64, jobType models.JobType) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.succeeded[key(userID, jobType)]
}

// Tick is one scheduling decision for the user's job of the given type. It
// is safe to call from the timer, an event trigger and a manual sync
// concurrently.
func (e *Engine) Tick(ctx context.Context, userID int64, jobType models.JobType) error {
	runner, ok := e.runners[jobType]
	if !ok {
		return fmt.Errorf("no runner registered for job type %q", jobType)
	}

	lock := e.lockFor(userID, jobType)
	lock.Lock()
	defer lock.Unlock()

	pending, err := runner.HasPendingWork(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check pending work: %w", err)
	}

	allowed, err := e.networkAllowed(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		e.logger.Debug(ctx, "tick skipped, waiting for wi-fi", "type", jobType)
		return nil
	}

	job, err := e.jobs.GetActive(ctx, userID, jobType)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	switch job.Status {
	case models.JobStatusOnProgress:
		return e.tickInFlight(ctx, job, jobType, pending)
	case models.JobStatusPending, models.JobStatusFailed:
		if job.Attempt > MaxAttempt {
			// exhausted failed job: same exhaustion handling as an
			// in-flight one
			return e.retire(ctx, job, jobType, pending)
		}
		return e.activate(ctx, job, runner)
	default:
		return nil
	}
}

// networkAllowed applies the wi-fi-only gate from device settings.
func (e *Engine) networkAllowed(ctx context.Context) (bool, error) {
	cfg, err := e.config.Get(ctx)
	if err != nil {
		return false, err
	}
	if cfg == nil || !cfg.SyncWifiOnly {
		return true, nil
	}
	return e.network.State(ctx) == netx.StateWifi, nil
}

// tickInFlight handles a job already ON_PROGRESS: bump the attempt counter
// while more work piles up, recycle or retire once the bound is reached.
func (e *Engine) tickInFlight(ctx context.Context, job *models.Job, jobType models.JobType, pending bool) error {
	if job.Attempt < MaxAttempt {
		if err := e.jobs.UpdateAttempt(ctx, job.ID, job.Attempt+1); err != nil {
			return err
		}
		e.logger.Debug(ctx, "job still in flight", "job", job.ID, "attempt", job.Attempt+1)
		return nil
	}
	return e.retire(ctx, job, jobType, pending)
}

// retire resolves a job that exhausted its attempts. Submission work is
// never abandoned: while datapoints remain pending the job is recycled with
// a fresh attempt budget. Download jobs are deleted regardless.
func (e *Engine) retire(ctx context.Context, job *models.Job, jobType models.JobType, pending bool) error {
	if pending && jobType != models.JobTypeFormDatapoints {
		if err := e.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending); err != nil {
			return err
		}
		if err := e.jobs.UpdateAttempt(ctx, job.ID, 0); err != nil {
			return err
		}
		e.logger.Info(ctx, "job recycled", "job", job.ID, "type", jobType)
		return nil
	}
	if err := e.jobs.Delete(ctx, job.ID); err != nil {
		return err
	}
	e.logger.Info(ctx, "job retired", "job", job.ID, "type", jobType)
	return nil
}

// activate claims the job via compare-and-swap and runs the sync. Losing
// the swap means another tick got there first, which is a normal outcome.
func (e *Engine) activate(ctx context.Context, job *models.Job, runner Runner) error {
	won, err := e.jobs.CASStatus(ctx, job.ID, job.Status, models.JobStatusOnProgress)
	if err != nil {
		return err
	}
	if !won {
		e.logger.Debug(ctx, "job already claimed", "job", job.ID)
		return nil
	}
	e.setSucceeded(job.UserID, job.Type, false)

	runErr := runner.Run(ctx, job.UserID)
	// outcome bookkeeping must survive a run that consumed the whole
	// deadline, otherwise a timed-out job stays ON_PROGRESS forever
	reportCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		return e.reportFailure(reportCtx, job, runErr)
	}
	return e.reportSuccess(reportCtx, job)
}

func (e *Engine) reportSuccess(ctx context.Context, job *models.Job) error {
	if err := e.jobs.Delete(ctx, job.ID); err != nil {
		return err
	}
	e.setSucceeded(job.UserID, job.Type, true)
	e.logger.Info(ctx, "job succeeded", "job", job.ID, "type", job.Type)
	return nil
}

func (e *Engine) reportFailure(ctx context.Context, job *models.Job, cause error) error {
	// pull jobs go straight back to PENDING; submission jobs park as
	// FAILED so the UI can distinguish "retrying" from "queued"
	status := models.JobStatusFailed
	if job.Type == models.JobTypeFormDatapoints {
		status = models.JobStatusPending
	}
	if err := e.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		return err
	}
	if err := e.jobs.UpdateAttempt(ctx, job.ID, job.Attempt+1); err != nil {
		return err
	}
	if err := e.jobs.UpdateInfo(ctx, job.ID, cause.Error()); err != nil {
		return err
	}
	e.logger.Warn(ctx, "job failed", "job", job.ID, "attempt", job.Attempt+1, "error", cause)
	return fmt.Errorf("sync job %d failed: %w", job.ID, cause)
}

// Status derives the UI-facing sync state for a user and type. A slot with
// no job row reads as success when its last run completed, idle otherwise; a
// queued job that has not started yet also reads as idle.
func (e *Engine) Status(ctx context.Context, userID int64, jobType models.JobType) (Status, error) {
	job, err := e.jobs.GetActive(ctx, userID, jobType)
	if err != nil {
		return StatusIdle, err
	}
	if job == nil {
		if e.lastSucceeded(userID, jobType) {
			return StatusSuccess, nil
		}
		return StatusIdle, nil
	}
	switch {
	case job.Status == models.JobStatusOnProgress:
		return StatusSyncing, nil
	case job.Status == models.JobStatusFailed || job.Attempt > 0:
		return StatusNeedsRetry, nil
	default:
		return StatusIdle, nil
	}
}

// Status is the read-only signal consumed by a UI status indicator.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSyncing    Status = "syncing"
	StatusNeedsRetry Status = "needs-retry"
	StatusSuccess    Status = "success"
)
