package certifications

import (
	"context"
	"fmt"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "certifications"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToCertification(row store.Row) (*models.Certification, error) {
	answers, err := models.DecodeAnswers(row.String("json"))
	if err != nil {
		return nil, fmt.Errorf("certification %d: %w", row.Int64("id"), err)
	}
	return &models.Certification{
		ID:               row.Int64("id"),
		FormID:           row.Int64("formId"),
		UUID:             row.String("uuid"),
		Name:             row.String("name"),
		AdministrationID: row.OptionalInt64("administrationId"),
		Answers:          answers,
		SyncedAt:         row.OptionalTime("syncedAt"),
		IsCertified:      row.Bool("isCertified"),
	}, nil
}

func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, c *models.Certification) error {
	encoded, err := c.Answers.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode certification answers: %w", err)
	}
	var syncedAt any
	if c.SyncedAt != nil {
		syncedAt = timex.FormatTimestamp(*c.SyncedAt)
	}
	var adminID any
	if c.AdministrationID != nil {
		adminID = *c.AdministrationID
	}
	// isCertified is excluded from the update so a refresh never undoes
	// work done in the field
	_, err = r.store.Exec(ctx, `
		INSERT INTO certifications (formId, uuid, name, administrationId, json, syncedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			formId = excluded.formId,
			name = excluded.name,
			administrationId = excluded.administrationId,
			json = excluded.json,
			syncedAt = excluded.syncedAt`,
		c.FormID, c.UUID, c.Name, adminID, encoded, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert certification record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.Certification, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"uuid": uuid}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select certification record: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToCertification(row)
}

func (r *SQLiteRepository) Total(ctx context.Context, formID int64, search string) (int64, error) {
	rows, err := r.store.Query(ctx, `
		SELECT COUNT(*) AS count FROM certifications
		WHERE formId = ? AND name LIKE ? COLLATE NOCASE`,
		formID, "%"+search+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to count certification records: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int64("count"), nil
}

func (r *SQLiteRepository) Paginated(ctx context.Context, formID int64, search string, limit, offset int) ([]models.Certification, error) {
	rows, err := r.store.Query(ctx, `
		SELECT * FROM certifications
		WHERE formId = ? AND name LIKE ? COLLATE NOCASE
		ORDER BY syncedAt DESC
		LIMIT ? OFFSET ?`,
		formID, "%"+search+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select certification page: %w", err)
	}
	result := make([]models.Certification, 0, len(rows))
	for _, row := range rows {
		c, err := rowToCertification(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkCertified(ctx context.Context, uuid string) error {
	affected, err := r.store.Update(ctx, tableName,
		store.Criteria{"uuid": uuid}, store.Values{"isCertified": 1})
	if err != nil {
		return fmt.Errorf("failed to mark certification: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no certification with uuid %s: %w", uuid, common.ErrorNotFound)
	}
	return nil
}
