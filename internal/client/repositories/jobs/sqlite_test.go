package jobs

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
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
)`)
	require.NoError(t, err)
	return db
}

func TestEnqueue_NoDuplicateActiveJob(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	job, created, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "uuid-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.JobStatusPending, job.Status)

	again, created, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "uuid-2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, again.ID)
	// the original correlation info survives
	assert.Equal(t, "uuid-1", again.Info)

	// a different type is an independent queue
	_, created, err = r.Enqueue(ctx, 1, models.JobTypeFormDatapoints, "")
	require.NoError(t, err)
	assert.True(t, created)

	// so is a different user
	_, created, err = r.Enqueue(ctx, 2, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnqueue_ConcurrentCallersInsertOnce(t *testing.T) {
	db := setupDB(t)
	db.SetMaxOpenConns(1)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	var created int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, fresh, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
			if assert.NoError(t, err) && fresh {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnqueue_FailedJobBlocksNewOne(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	job, _, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.NoError(t, r.UpdateStatus(ctx, job.ID, models.JobStatusFailed))

	// FAILED is retryable, not terminal, so it still occupies the slot
	again, created, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, models.JobStatusFailed, again.Status)
}

func TestCASStatus_SingleWinner(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	job, _, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)

	won, err := r.CASStatus(ctx, job.ID, models.JobStatusPending, models.JobStatusOnProgress)
	require.NoError(t, err)
	assert.True(t, won)

	// second claim sees the job already taken
	won, err = r.CASStatus(ctx, job.ID, models.JobStatusPending, models.JobStatusOnProgress)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := r.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOnProgress, got.Status)
}

func TestAttemptAndInfoUpdates(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	job, _, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)

	require.NoError(t, r.UpdateAttempt(ctx, job.ID, 2))
	require.NoError(t, r.UpdateInfo(ctx, job.ID, "connection refused"))

	got, err := r.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "connection refused", got.Info)
}

func TestDelete_FreesTheSlot(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	job, _, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, job.ID))

	active, err := r.GetActive(ctx, 1, models.JobTypeFormSubmission)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, created, err := r.Enqueue(ctx, 1, models.JobTypeFormSubmission, "")
	require.NoError(t, err)
	assert.True(t, created)
}
