package forms

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "forms"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToForm(row store.Row) *models.Form {
	return &models.Form{
		ID:        row.Int64("id"),
		ParentID:  row.OptionalInt64("parentId"),
		UserID:    row.Int64("userId"),
		FormID:    row.Int64("formId"),
		Version:   row.String("version"),
		Latest:    row.Bool("latest"),
		Name:      row.String("name"),
		JSON:      row.String("json"),
		CreatedAt: row.Time("createdAt"),
	}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, form *models.Form) (int64, error) {
	existing, err := r.store.SelectOne(ctx, tableName,
		store.Criteria{"formId": form.FormID, "version": form.Version}, "")
	if err != nil {
		return 0, fmt.Errorf("failed to look up form: %w", err)
	}
	if existing != nil {
		id := existing.Int64("id")
		_, err := r.store.Update(ctx, tableName,
			store.Criteria{"id": id},
			store.Values{"name": form.Name, "json": form.JSON, "latest": 1})
		if err != nil {
			return 0, fmt.Errorf("failed to refresh form: %w", err)
		}
		return id, nil
	}

	// A new version supersedes every stored one.
	if _, err := r.store.Update(ctx, tableName,
		store.Criteria{"formId": form.FormID},
		store.Values{"latest": 0}); err != nil {
		return 0, fmt.Errorf("failed to demote previous versions: %w", err)
	}

	values := store.Values{
		"userId":    form.UserID,
		"formId":    form.FormID,
		"version":   form.Version,
		"latest":    1,
		"name":      form.Name,
		"json":      form.JSON,
		"createdAt": timex.FormatTimestamp(time.Now()),
	}
	if form.ParentID != nil {
		values["parentId"] = *form.ParentID
	}
	id, err := r.store.Insert(ctx, tableName, values)
	if err != nil {
		return 0, fmt.Errorf("failed to insert form: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Form, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"id": id}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select form: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToForm(row), nil
}

func (r *SQLiteRepository) GetByFormID(ctx context.Context, formID int64) (*models.Form, error) {
	row, err := r.store.SelectOne(ctx, tableName,
		store.Criteria{"formId": formID, "latest": 1}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select form: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToForm(row), nil
}

func (r *SQLiteRepository) ListLatest(ctx context.Context) ([]models.Form, error) {
	rows, err := r.store.SelectMany(ctx, tableName,
		store.Criteria{"latest": 1}, "name", store.Ascending, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select forms: %w", err)
	}
	result := make([]models.Form, 0, len(rows))
	for _, row := range rows {
		result = append(result, *rowToForm(row))
	}
	return result, nil
}
