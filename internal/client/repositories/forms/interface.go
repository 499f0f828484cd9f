package forms

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository stores fetched survey definitions. Definitions are immutable
// once stored except for the latest flag, which management of new versions
// flips.
type Repository interface {
	// Upsert stores a form definition. A row with the same remote formId
	// and version is refreshed in place; a newer version demotes the
	// latest flag on all earlier versions before inserting.
	Upsert(ctx context.Context, form *models.Form) (int64, error)

	// GetByID returns a form by local id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.Form, error)

	// GetByFormID returns the latest stored version for a remote form id,
	// or nil when the form was never fetched.
	GetByFormID(ctx context.Context, formID int64) (*models.Form, error)

	// ListLatest returns the latest version of every stored form.
	ListLatest(ctx context.Context) ([]models.Form, error)
}
