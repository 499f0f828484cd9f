package datapoints

import (
	"context"
	"fmt"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

const tableName = "datapoints"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func rowToDataPoint(row store.Row) (*models.DataPoint, error) {
	answers, err := models.DecodeAnswers(row.String("json"))
	if err != nil {
		return nil, fmt.Errorf("datapoint %d: %w", row.Int64("id"), err)
	}
	repeats, err := models.DecodeRepeats(row.String("repeats"))
	if err != nil {
		return nil, fmt.Errorf("datapoint %d: %w", row.Int64("id"), err)
	}
	return &models.DataPoint{
		ID:               row.Int64("id"),
		FormID:           row.Int64("form"),
		UserID:           row.Int64("user"),
		AdministrationID: row.OptionalInt64("administrationId"),
		Submitter:        row.String("submitter"),
		Name:             row.String("name"),
		Geo:              row.String("geo"),
		Submitted:        row.Bool("submitted"),
		Duration:         row.Float64("duration"),
		CreatedAt:        row.Time("createdAt"),
		SubmittedAt:      row.OptionalTime("submittedAt"),
		SyncedAt:         row.OptionalTime("syncedAt"),
		Answers:          answers,
		UUID:             row.String("uuid"),
		Repeats:          repeats,
	}, nil
}

func dataPointValues(dp *models.DataPoint) (store.Values, error) {
	encoded, err := dp.Answers.Encode()
	if err != nil {
		return nil, err
	}
	repeats, err := models.EncodeRepeats(dp.Repeats)
	if err != nil {
		return nil, err
	}
	submitted := 0
	if dp.Submitted {
		submitted = 1
	}
	// Every column is written so the row always mirrors the struct: a
	// draft whose answers were emptied must lose the stored blob too.
	values := store.Values{
		"form":             dp.FormID,
		"user":             dp.UserID,
		"submitter":        dp.Submitter,
		"name":             dp.Name,
		"geo":              dp.Geo,
		"submitted":        submitted,
		"duration":         dp.Duration,
		"uuid":             dp.UUID,
		"json":             encoded,
		"repeats":          repeats,
		"administrationId": nil,
		"submittedAt":      nil,
		"syncedAt":         nil,
	}
	if dp.AdministrationID != nil {
		values["administrationId"] = *dp.AdministrationID
	}
	if dp.SubmittedAt != nil {
		values["submittedAt"] = timex.FormatTimestamp(*dp.SubmittedAt)
	}
	if dp.SyncedAt != nil {
		values["syncedAt"] = timex.FormatTimestamp(*dp.SyncedAt)
	}
	return values, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, dp *models.DataPoint) (int64, error) {
	values, err := dataPointValues(dp)
	if err != nil {
		return 0, fmt.Errorf("failed to encode datapoint: %w", err)
	}
	createdAt := dp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	values["createdAt"] = timex.FormatTimestamp(createdAt)

	id, err := r.store.Insert(ctx, tableName, values)
	if err != nil {
		return 0, fmt.Errorf("failed to insert datapoint: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, dp *models.DataPoint) error {
	values, err := dataPointValues(dp)
	if err != nil {
		return fmt.Errorf("failed to encode datapoint: %w", err)
	}
	affected, err := r.store.Update(ctx, tableName, store.Criteria{"id": dp.ID}, values)
	if err != nil {
		return fmt.Errorf("failed to update datapoint: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("datapoint %d: %w", dp.ID, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.DataPoint, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"id": id}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select datapoint: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToDataPoint(row)
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.DataPoint, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"uuid": uuid}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select datapoint: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToDataPoint(row)
}

func (r *SQLiteRepository) ListByFormAndSubmitted(ctx context.Context, formID int64, submitted bool, userID int64) ([]models.DataPoint, error) {
	submittedVal := 0
	if submitted {
		submittedVal = 1
	}
	criteria := store.Criteria{"form": formID, "submitted": submittedVal}
	if userID != 0 {
		criteria["user"] = userID
	}
	rows, err := r.store.SelectMany(ctx, tableName, criteria, "syncedAt", store.Descending, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select datapoints: %w", err)
	}
	result := make([]models.DataPoint, 0, len(rows))
	for _, row := range rows {
		dp, err := rowToDataPoint(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *dp)
	}
	return result, nil
}

// NextPendingSync picks work FIFO by createdAt so long-queued submissions
// are never starved.
func (r *SQLiteRepository) NextPendingSync(ctx context.Context, userID int64) (*PendingSubmission, error) {
	rows, err := r.store.Query(ctx, `
		SELECT datapoints.*, forms.formId AS remote_form_id, forms.json AS json_form
		FROM datapoints
		JOIN forms ON datapoints.form = forms.id
		WHERE datapoints.submitted = 1
		  AND datapoints.syncedAt IS NULL
		  AND datapoints.user = ?
		ORDER BY datapoints.createdAt ASC
		LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending submission: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	dp, err := rowToDataPoint(rows[0])
	if err != nil {
		return nil, err
	}
	return &PendingSubmission{
		DataPoint:    *dp,
		RemoteFormID: rows[0].Int64("remote_form_id"),
		FormJSON:     rows[0].String("json_form"),
	}, nil
}

func (r *SQLiteRepository) HasPendingSync(ctx context.Context, userID int64) (bool, error) {
	rows, err := r.store.Query(ctx, `
		SELECT COUNT(*) AS count FROM datapoints
		WHERE submitted = 1 AND syncedAt IS NULL AND user = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count pending submissions: %w", err)
	}
	return len(rows) > 0 && rows[0].Int64("count") > 0, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, uuid string, syncedAt time.Time) error {
	// The submittedAt guard keeps syncedAt from ever preceding it.
	affected, err := r.store.Exec(ctx, `
		UPDATE datapoints SET syncedAt = ?
		WHERE uuid = ? AND submittedAt IS NOT NULL`,
		timex.FormatTimestamp(syncedAt), uuid)
	if err != nil {
		return fmt.Errorf("failed to mark datapoint synced: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no submitted datapoint with uuid %s: %w", uuid, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) UpdateByUUID(ctx context.Context, uuid string, answers models.AnswerMap, syncedAt time.Time) error {
	encoded, err := answers.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	affected, err := r.store.Update(ctx, tableName,
		store.Criteria{"uuid": uuid},
		store.Values{"json": encoded, "syncedAt": timex.FormatTimestamp(syncedAt)})
	if err != nil {
		return fmt.Errorf("failed to update datapoint by uuid: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no datapoint with uuid %s: %w", uuid, common.ErrorNotFound)
	}
	return nil
}
