package jobs

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository persists the job queue. Rows are removed on success, so the
// table only ever holds in-flight work.
type Repository interface {
	// GetActive returns the newest non-terminal job for the user and
	// type, or nil when the queue is empty for that pair.
	GetActive(ctx context.Context, userID int64, jobType models.JobType) (*models.Job, error)

	// GetByID returns a job by id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.Job, error)

	// Enqueue creates a PENDING job unless a non-terminal one already
	// exists for the same user and type, in which case the existing job
	// is returned and created is false.
	Enqueue(ctx context.Context, userID int64, jobType models.JobType, info string) (job *models.Job, created bool, err error)

	// CASStatus transitions a job from one status to another and reports
	// whether this caller won the transition.
	CASStatus(ctx context.Context, id int64, from, to models.JobStatus) (bool, error)

	// UpdateStatus sets the status unconditionally.
	UpdateStatus(ctx context.Context, id int64, status models.JobStatus) error

	// UpdateAttempt sets the attempt counter.
	UpdateAttempt(ctx context.Context, id int64, attempt int) error

	// UpdateInfo replaces the info column, usually with the last error.
	UpdateInfo(ctx context.Context, id int64, info string) error

	// Delete removes a finished job row.
	Delete(ctx context.Context, id int64) error
}
