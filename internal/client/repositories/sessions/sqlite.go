package sessions

import (
	"context"
	"fmt"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
)

const tableName = "sessions"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func (r *SQLiteRepository) Last(ctx context.Context) (*models.Session, error) {
	row, err := r.store.SelectOne(ctx, tableName, nil, "id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to select last session: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return &models.Session{
		ID:       row.Int64("id"),
		Token:    row.String("token"),
		Passcode: row.String("passcode"),
	}, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, session *models.Session) (int64, error) {
	id, err := r.store.Insert(ctx, tableName, store.Values{
		"token":    session.Token,
		"passcode": session.Passcode,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}
