package certifications

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository stores certification targets pulled from the server, keyed by
// uuid like monitoring records, plus a local certified flag.
type Repository interface {
	// UpsertByUUID inserts the record or refreshes an existing row with
	// the same uuid. The local isCertified flag is preserved on refresh.
	UpsertByUUID(ctx context.Context, c *models.Certification) error

	// GetByUUID returns a record by uuid, or nil when not found.
	GetByUUID(ctx context.Context, uuid string) (*models.Certification, error)

	// Total counts records for a form matching the case-insensitive
	// name search.
	Total(ctx context.Context, formID int64, search string) (int64, error)

	// Paginated returns one page, newest synced first.
	Paginated(ctx context.Context, formID int64, search string, limit, offset int) ([]models.Certification, error)

	// MarkCertified flips the local certified flag for a uuid.
	MarkCertified(ctx context.Context, uuid string) error
}
