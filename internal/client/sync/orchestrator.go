// Package sync schedules job-queue ticks: a periodic timer for pushing
// submissions, an event trigger for pulling datapoint updates, and a
// user-initiated manual sync.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/jobqueue"
	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/jobs"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/users"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

// DefaultInterval applies when the device settings row is missing or
// carries a non-positive sync interval.
const DefaultInterval = 5 * time.Minute

type Orchestrator struct {
	engine  *jobqueue.Engine
	jobs    jobs.Repository
	users   users.Repository
	config  config.Repository
	logger  logging.Logger
	timeout time.Duration

	trigger chan models.JobType
}

// NewOrchestrator wires the scheduler. timeout bounds each sync run so a
// hung network call can never leave a job permanently in flight.
func NewOrchestrator(engine *jobqueue.Engine, js jobs.Repository, us users.Repository, cfg config.Repository, timeout time.Duration, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		engine:  engine,
		jobs:    js,
		users:   us,
		config:  cfg,
		logger:  logger,
		timeout: timeout,
		trigger: make(chan models.JobType, 8),
	}
}

// Run drives the loop until ctx is cancelled. Timer firings and external
// triggers are serviced by this single goroutine, so two ticks never run
// concurrently from the scheduler itself.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.interval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info(ctx, "sync orchestrator started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info(ctx, "sync orchestrator stopped")
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx, models.JobTypeFormSubmission)
			// the interval may have been changed from settings
			if next := o.interval(ctx); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case jobType := <-o.trigger:
			o.tick(ctx, jobType)
		}
	}
}

// NotifyDatapointsChanged signals that the server-side datapoint list
// changed and a pull should be scheduled. Never blocks.
func (o *Orchestrator) NotifyDatapointsChanged() {
	select {
	case o.trigger <- models.JobTypeFormDatapoints:
	default:
	}
}

// SyncNow is the user-initiated entry point. It refuses to stack on top of
// a sync already in flight.
func (o *Orchestrator) SyncNow(ctx context.Context, jobType models.JobType) error {
	user, err := o.users.GetActive(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no active user: %w", common.ErrorUnauthorized)
	}

	active, err := o.jobs.GetActive(ctx, user.ID, jobType)
	if err != nil {
		return err
	}
	if active != nil && active.Status == models.JobStatusOnProgress {
		return common.ErrSyncInProgress
	}
	if active == nil {
		if _, _, err := o.jobs.Enqueue(ctx, user.ID, jobType, ""); err != nil {
			return err
		}
	}
	return o.runTick(ctx, user.ID, jobType)
}

// Status reports the UI-facing sync state for the active user.
func (o *Orchestrator) Status(ctx context.Context, jobType models.JobType) (jobqueue.Status, error) {
	user, err := o.users.GetActive(ctx)
	if err != nil {
		return jobqueue.StatusIdle, err
	}
	if user == nil {
		return jobqueue.StatusIdle, nil
	}
	return o.engine.Status(ctx, user.ID, jobType)
}

func (o *Orchestrator) interval(ctx context.Context) time.Duration {
	cfg, err := o.config.Get(ctx)
	if err != nil || cfg == nil || cfg.SyncInterval <= 0 {
		return DefaultInterval
	}
	return cfg.Interval()
}

// tick is the scheduled (non-manual) path: silent when no user is enrolled,
// logged but not fatal on failure.
func (o *Orchestrator) tick(ctx context.Context, jobType models.JobType) {
	user, err := o.users.GetActive(ctx)
	if err != nil {
		o.logger.Error(ctx, "failed to resolve active user", "error", err)
		return
	}
	if user == nil {
		return
	}
	// Pull jobs have no submit flow creating them: the changed-list signal
	// itself queues the work, so a trigger with no job row is never inert.
	if jobType == models.JobTypeFormDatapoints {
		if _, _, err := o.jobs.Enqueue(ctx, user.ID, jobType, ""); err != nil {
			o.logger.Error(ctx, "failed to enqueue pull job", "error", err)
			return
		}
	}
	if err := o.runTick(ctx, user.ID, jobType); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn(ctx, "sync timed out", "type", jobType)
			return
		}
		o.logger.Warn(ctx, "sync tick failed", "type", jobType, "error", err)
	}
}

func (o *Orchestrator) runTick(ctx context.Context, userID int64, jobType models.JobType) error {
	tickCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.engine.Tick(tickCtx, userID, jobType)
}
