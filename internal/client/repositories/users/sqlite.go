package users

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/cryptox"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "users"

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	store *store.Store
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToUser(row store.Row) *models.User {
	return &models.User{
		ID:           row.Int64("id"),
		Name:         row.String("name"),
		Password:     row.String("password"),
		Active:       row.Bool("active"),
		Token:        row.String("token"),
		LastSyncedAt: row.OptionalTime("lastSyncedAt"),
	}
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.store.SelectMany(ctx, tableName, nil, "id", store.Ascending, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	result := make([]models.User, 0, len(rows))
	for _, row := range rows {
		result = append(result, *rowToUser(row))
	}
	return result, nil
}

func (r *SQLiteRepository) GetActive(ctx context.Context) (*models.User, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"active": 1}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select active user: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToUser(row), nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"id": id}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToUser(row), nil
}

func (r *SQLiteRepository) Add(ctx context.Context, user *models.User) (int64, error) {
	active := 0
	if user.Active {
		active = 1
	}
	values := store.Values{
		"name":     user.Name,
		"password": user.Password,
		"active":   active,
		"token":    user.Token,
	}
	if user.LastSyncedAt != nil {
		values["lastSyncedAt"] = timex.FormatTimestamp(*user.LastSyncedAt)
	}
	id, err := r.store.Insert(ctx, tableName, values)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

// ToggleActive activates one user and deactivates the rest in a single
// statement, so no observation point can see two active users.
func (r *SQLiteRepository) ToggleActive(ctx context.Context, id int64) error {
	affected, err := r.store.Exec(ctx,
		`UPDATE users SET active = CASE WHEN id = ? THEN 1 ELSE 0 END`, id)
	if err != nil {
		return fmt.Errorf("failed to toggle active user: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no users to activate")
	}
	return nil
}

func (r *SQLiteRepository) CheckPasscode(ctx context.Context, passcode string) (*models.User, error) {
	// Hashes are salted, so the lookup cannot be a column match.
	users, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		ok, err := cryptox.VerifyPasscode(passcode, users[i].Password)
		if err != nil {
			continue // legacy or malformed hash, skip the row
		}
		if ok {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (r *SQLiteRepository) UpdateLastSynced(ctx context.Context, id int64) error {
	_, err := r.store.Update(ctx, tableName,
		store.Criteria{"id": id},
		store.Values{"lastSyncedAt": timex.FormatTimestamp(time.Now())})
	if err != nil {
		return fmt.Errorf("failed to update lastSyncedAt: %w", err)
	}
	return nil
}
