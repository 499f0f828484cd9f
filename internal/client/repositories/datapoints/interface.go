package datapoints

import (
	"context"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// PendingSubmission is an unsynced submitted datapoint joined with the form
// metadata needed to build its upload payload.
type PendingSubmission struct {
	DataPoint    models.DataPoint
	RemoteFormID int64
	FormJSON     string
}

// Repository describes CRUD and query operations for datapoints. Answer
// maps are (de)serialized at this boundary, with single quotes escaped for
// storage.
type Repository interface {
	// Save inserts a datapoint and returns the new local id.
	Save(ctx context.Context, dp *models.DataPoint) (int64, error)

	// Update rewrites a datapoint's mutable fields by local id.
	Update(ctx context.Context, dp *models.DataPoint) error

	// GetByID returns a datapoint by local id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.DataPoint, error)

	// GetByUUID returns a datapoint by its client uuid, or nil.
	GetByUUID(ctx context.Context, uuid string) (*models.DataPoint, error)

	// ListByFormAndSubmitted returns rows for rendering lists, newest
	// synced first. A zero userID matches any user.
	ListByFormAndSubmitted(ctx context.Context, formID int64, submitted bool, userID int64) ([]models.DataPoint, error)

	// NextPendingSync returns the oldest-created submitted-but-unsynced
	// datapoint for the user, or nil when nothing is pending.
	NextPendingSync(ctx context.Context, userID int64) (*PendingSubmission, error)

	// HasPendingSync reports whether at least one submitted datapoint
	// still lacks a server acknowledgment.
	HasPendingSync(ctx context.Context, userID int64) (bool, error)

	// MarkSynced records the server acknowledgment for a uuid. It never
	// touches rows that were not submitted, so syncedAt cannot precede
	// submittedAt.
	MarkSynced(ctx context.Context, uuid string, syncedAt time.Time) error

	// UpdateByUUID refreshes answers and syncedAt for a pulled monitoring
	// datapoint that already exists locally.
	UpdateByUUID(ctx context.Context, uuid string, answers models.AnswerMap, syncedAt time.Time) error
}
