package monitoring

import (
	"context"
	"fmt"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "monitoring"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToMonitoring(row store.Row) (*models.Monitoring, error) {
	answers, err := models.DecodeAnswers(row.String("json"))
	if err != nil {
		return nil, fmt.Errorf("monitoring %d: %w", row.Int64("id"), err)
	}
	return &models.Monitoring{
		ID:               row.Int64("id"),
		FormID:           row.Int64("formId"),
		UUID:             row.String("uuid"),
		Name:             row.String("name"),
		AdministrationID: row.OptionalInt64("administrationId"),
		Answers:          answers,
		SyncedAt:         row.OptionalTime("syncedAt"),
	}, nil
}

func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, m *models.Monitoring) error {
	encoded, err := m.Answers.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode monitoring answers: %w", err)
	}
	var syncedAt any
	if m.SyncedAt != nil {
		syncedAt = timex.FormatTimestamp(*m.SyncedAt)
	}
	var adminID any
	if m.AdministrationID != nil {
		adminID = *m.AdministrationID
	}
	// single statement keeps concurrent pulls from racing on the same uuid
	_, err = r.store.Exec(ctx, `
		INSERT INTO monitoring (formId, uuid, name, administrationId, json, syncedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			formId = excluded.formId,
			name = excluded.name,
			administrationId = excluded.administrationId,
			json = excluded.json,
			syncedAt = excluded.syncedAt`,
		m.FormID, m.UUID, m.Name, adminID, encoded, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert monitoring record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.Monitoring, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"uuid": uuid}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select monitoring record: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToMonitoring(row)
}

func (r *SQLiteRepository) Total(ctx context.Context, formID int64, search string) (int64, error) {
	rows, err := r.store.Query(ctx, `
		SELECT COUNT(*) AS count FROM monitoring
		WHERE formId = ? AND name LIKE ? COLLATE NOCASE`,
		formID, "%"+search+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to count monitoring records: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int64("count"), nil
}

func (r *SQLiteRepository) Paginated(ctx context.Context, formID int64, search string, limit, offset int) ([]models.Monitoring, error) {
	rows, err := r.store.Query(ctx, `
		SELECT * FROM monitoring
		WHERE formId = ? AND name LIKE ? COLLATE NOCASE
		ORDER BY syncedAt DESC
		LIMIT ? OFFSET ?`,
		formID, "%"+search+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select monitoring page: %w", err)
	}
	result := make([]models.Monitoring, 0, len(rows))
	for _, row := range rows {
		m, err := rowToMonitoring(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, nil
}
