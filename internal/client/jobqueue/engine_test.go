package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/jobs"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
	"github.com/akvo/dws-datapro-sub000/internal/netx"

	_ "modernc.org/sqlite"
)

type fakeRunner struct {
	pending bool
	runErr  error
	runs    int
}

func (f *fakeRunner) HasPendingWork(ctx context.Context, userID int64) (bool, error) {
	return f.pending, nil
}

func (f *fakeRunner) Run(ctx context.Context, userID int64) error {
	f.runs++
	return f.runErr
}

type fixture struct {
	engine *Engine
	jobs   *jobs.SQLiteRepository
	runner *fakeRunner
	db     *sql.DB
}

func setup(t *testing.T, wifiOnly bool, network netx.State) fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE jobs (
  id INTEGER PRIMARY KEY NOT NULL,
  user INTEGER NOT NULL,
  type VARCHAR(191),
  status INTEGER NOT NULL,
  attempt INTEGER DEFAULT '0' NOT NULL,
  info VARCHAR(255),
  createdAt DATETIME
);
CREATE TABLE config (
  id INTEGER PRIMARY KEY NOT NULL,
  appVersion VARCHAR(255) NOT NULL,
  authenticationCode TEXT,
  serverURL TEXT,
  syncInterval REAL,
  syncWifiOnly TINYINT,
  lang VARCHAR(255) DEFAULT 'en' NOT NULL,
  gpsThreshold INTEGER NULL,
  gpsAccuracyLevel INTEGER NULL,
  geoLocationTimeout INTEGER NULL
);`)
	require.NoError(t, err)

	jobRepo := jobs.NewSQLiteRepository(db)
	cfgRepo := config.NewSQLiteRepository(db)
	require.NoError(t, cfgRepo.Save(context.Background(), &models.Config{
		AppVersion: "test", SyncInterval: 300, SyncWifiOnly: wifiOnly,
	}))

	runner := &fakeRunner{pending: true}
	engine := NewEngine(jobRepo, cfgRepo, netx.Static(network), logging.NewNopLogger())
	engine.Register(models.JobTypeFormSubmission, runner)
	engine.Register(models.JobTypeFormDatapoints, runner)
	return fixture{engine: engine, jobs: jobRepo, runner: runner, db: db}
}

func TestTick_RunsPendingJobAndDeletesOnSuccess(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()

	_, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "uuid-1")
	require.NoError(t, err)

	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))
	assert.Equal(t, 1, f.runner.runs)

	active, err := f.jobs.GetActive(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestTick_FailureIncrementsAttemptAndRecordsInfo(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()
	f.runner.runErr = errors.New("connection refused")

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)

	err = f.engine.Tick(ctx, 1, models.JobTypeFormSubmission)
	require.Error(t, err)

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, "connection refused", got.Info)
}

// Scenario: in-flight job below the bound gets a heartbeat bump, then once
// the bound is reached and work remains it is recycled with a fresh budget.
func TestTick_InFlightHeartbeatThenRecycle(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.NoError(t, f.jobs.UpdateStatus(ctx, job.ID, models.JobStatusOnProgress))
	require.NoError(t, f.jobs.UpdateAttempt(ctx, job.ID, 2))

	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))
	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOnProgress, got.Status)
	assert.Equal(t, 3, got.Attempt)
	assert.Equal(t, 0, f.runner.runs)

	// attempt now at the bound, pending work present: recycle
	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))
	got, err = f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempt)
}

// Scenario: in-flight job at the bound with nothing left to do is deleted.
func TestTick_ExhaustedWithNoWorkIsDeleted(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()
	f.runner.pending = false

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.NoError(t, f.jobs.UpdateStatus(ctx, job.ID, models.JobStatusOnProgress))
	require.NoError(t, f.jobs.UpdateAttempt(ctx, job.ID, MaxAttempt))

	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// Scenario: wi-fi-only device on cellular does nothing at all.
func TestTick_WifiOnlyOnCellularIsNoop(t *testing.T) {
	f := setup(t, true, netx.StateCellular)
	ctx := context.Background()

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)

	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))
	assert.Equal(t, 0, f.runner.runs)

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempt)
}

// Download jobs are not re-queued indefinitely: at the bound they are
// deleted even with pending work.
func TestTick_DownloadJobDeletedAtBoundDespitePendingWork(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormDatapoints, "")
	require.NoError(t, err)
	require.NoError(t, f.jobs.UpdateStatus(ctx, job.ID, models.JobStatusOnProgress))
	require.NoError(t, f.jobs.UpdateAttempt(ctx, job.ID, MaxAttempt))

	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormDatapoints))

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatus(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()

	status, err := f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, status)

	job, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)

	// queued but not started yet: still idle, not syncing
	status, err = f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, status)

	require.NoError(t, f.jobs.UpdateStatus(ctx, job.ID, models.JobStatusOnProgress))
	status, err = f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusSyncing, status)

	require.NoError(t, f.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed))
	status, err = f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsRetry, status)
}

func TestStatus_SuccessAfterCompletedRun(t *testing.T) {
	f := setup(t, false, netx.StateWifi)
	ctx := context.Background()

	_, _, err := f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.NoError(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))

	// the job row is gone, but the status bar still shows the outcome
	status, err := f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	// a failed follow-up run replaces the success signal
	f.runner.runErr = errors.New("connection refused")
	_, _, err = f.jobs.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.Error(t, f.engine.Tick(ctx, 1, models.JobTypeFormSubmission))

	status, err = f.engine.Status(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsRetry, status)
}
