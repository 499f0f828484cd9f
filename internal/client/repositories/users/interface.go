package users

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository describes CRUD and query operations for locally enrolled
// users. Implementations are backed by the local SQLite database.
type Repository interface {
	// GetAll returns every enrolled user.
	GetAll(ctx context.Context) ([]models.User, error)

	// GetActive returns the single active user, or nil when none exists.
	GetActive(ctx context.Context) (*models.User, error)

	// GetByID returns a user by local id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Add enrolls a user and returns the new local id.
	Add(ctx context.Context, user *models.User) (int64, error)

	// ToggleActive makes the given user the active one, deactivating all
	// others in the same statement so exactly one user stays active.
	ToggleActive(ctx context.Context, id int64) error

	// CheckPasscode returns the user whose stored hash matches the
	// passcode, or nil when no user matches.
	CheckPasscode(ctx context.Context, passcode string) (*models.User, error)

	// UpdateLastSynced stamps the user's lastSyncedAt with now.
	UpdateLastSynced(ctx context.Context, id int64) error
}
