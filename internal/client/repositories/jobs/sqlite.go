package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "jobs"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToJob(row store.Row) *models.Job {
	return &models.Job{
		ID:        row.Int64("id"),
		UserID:    row.Int64("user"),
		Type:      models.JobType(row.String("type")),
		Status:    models.JobStatus(row.Int64("status")),
		Attempt:   int(row.Int64("attempt")),
		Info:      row.String("info"),
		CreatedAt: row.Time("createdAt"),
	}
}

func (r *SQLiteRepository) GetActive(ctx context.Context, userID int64, jobType models.JobType) (*models.Job, error) {
	row, err := r.store.SelectOne(ctx, tableName,
		store.Criteria{"user": userID, "type": string(jobType)},
		"createdAt DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to select active job: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	job := rowToJob(row)
	if job.Status.Terminal() {
		return nil, nil
	}
	return job, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"id": id}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select job: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToJob(row), nil
}

// Enqueue inserts a PENDING job unless a non-terminal one already occupies
// the (user, type) slot. The existence check and the insert are one SQL
// statement, so two callers racing on an empty slot cannot both insert.
func (r *SQLiteRepository) Enqueue(ctx context.Context, userID int64, jobType models.JobType, info string) (*models.Job, bool, error) {
	affected, err := r.store.Exec(ctx, `
		INSERT INTO jobs (user, type, status, attempt, info, createdAt)
		SELECT ?, ?, ?, 0, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM jobs WHERE user = ? AND type = ? AND status != ?
		)`,
		userID, string(jobType), int(models.JobStatusPending), info,
		timex.FormatTimestamp(time.Now()),
		userID, string(jobType), int(models.JobStatusSuccess))
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	job, err := r.GetActive(ctx, userID, jobType)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("no active job after enqueue for user %d type %s", userID, jobType)
	}
	return job, affected == 1, nil
}

// CASStatus relies on the single-statement UPDATE being atomic in SQLite,
// so two workers racing on the same job cannot both win.
func (r *SQLiteRepository) CASStatus(ctx context.Context, id int64, from, to models.JobStatus) (bool, error) {
	affected, err := r.store.Exec(ctx,
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		int(to), id, int(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition job status: %w", err)
	}
	return affected == 1, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id int64, status models.JobStatus) error {
	return r.updateField(ctx, id, store.Values{"status": int(status)})
}

func (r *SQLiteRepository) UpdateAttempt(ctx context.Context, id int64, attempt int) error {
	return r.updateField(ctx, id, store.Values{"attempt": attempt})
}

func (r *SQLiteRepository) UpdateInfo(ctx context.Context, id int64, info string) error {
	return r.updateField(ctx, id, store.Values{"info": info})
}

func (r *SQLiteRepository) updateField(ctx context.Context, id int64, values store.Values) error {
	affected, err := r.store.Update(ctx, tableName, store.Criteria{"id": id}, values)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if err := r.store.Delete(ctx, tableName, store.Criteria{"id": id}); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
