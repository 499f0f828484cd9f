package monitoring

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository stores monitoring datapoints pulled from the server. Rows are
// keyed by uuid so repeated pulls refresh in place.
type Repository interface {
	// UpsertByUUID inserts the record or refreshes an existing row with
	// the same uuid.
	UpsertByUUID(ctx context.Context, m *models.Monitoring) error

	// GetByUUID returns a record by uuid, or nil when not found.
	GetByUUID(ctx context.Context, uuid string) (*models.Monitoring, error)

	// Total counts records for a form matching the case-insensitive
	// name search. An empty search matches everything.
	Total(ctx context.Context, formID int64, search string) (int64, error)

	// Paginated returns one page, newest synced first.
	Paginated(ctx context.Context, formID int64, search string, limit, offset int) ([]models.Monitoring, error)
}
