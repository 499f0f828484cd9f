package sessions

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository is the append-only log of authentication exchanges. The last
// row is the current session.
type Repository interface {
	// Last returns the most recent session, or nil when none exists.
	Last(ctx context.Context) (*models.Session, error)

	// Add appends a session row and returns its id.
	Add(ctx context.Context, session *models.Session) (int64, error)
}
