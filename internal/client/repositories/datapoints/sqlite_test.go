package datapoints

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE datapoints (
  id INTEGER PRIMARY KEY NOT NULL,
  form INTEGER NOT NULL,
  user INTEGER NOT NULL,
  administrationId INTEGER,
  submitter TEXT,
  name VARCHAR(255),
  geo VARCHAR(255),
  submitted TINYINT,
  duration REAL,
  createdAt DATETIME,
  submittedAt DATETIME,
  syncedAt DATETIME,
  json TEXT,
  uuid VARCHAR(191),
  repeats TEXT
);
CREATE TABLE forms (
  id INTEGER PRIMARY KEY NOT NULL,
  formId INTEGER NOT NULL,
  version VARCHAR(255),
  latest TINYINT,
  name VARCHAR(255),
  json TEXT,
  createdAt DATETIME
);
INSERT INTO forms (id, formId, version, latest, name, json) VALUES (1, 100, '1', 1, 'Household', '{"form":true}');
`)
	require.NoError(t, err)
	return db
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Save(ctx, &models.DataPoint{
		FormID:  1,
		UserID:  1,
		Name:    "O'Brien household",
		Geo:     "1.2|3.4",
		UUID:    "uuid-1",
		Answers: models.AnswerMap{"1": "O'Brien", "2": float64(7)},
		Repeats: map[string][]int{"5": {0, 1}},
	})
	require.NoError(t, err)

	dp, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, dp)
	assert.Equal(t, "O'Brien household", dp.Name)
	assert.Equal(t, models.AnswerMap{"1": "O'Brien", "2": float64(7)}, dp.Answers)
	assert.Equal(t, map[string][]int{"5": {0, 1}}, dp.Repeats)
	assert.False(t, dp.Submitted)
	assert.Nil(t, dp.SubmittedAt)
	assert.Nil(t, dp.SyncedAt)

	// the stored blob keeps quotes doubled
	var raw string
	require.NoError(t, db.QueryRow(`SELECT json FROM datapoints WHERE id=?`, id).Scan(&raw))
	assert.Contains(t, raw, "O''Brien")
}

func TestNextPendingSync_FIFOAndUserScoped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now()

	older := now.Add(-2 * time.Hour)
	newer := now.Add(-1 * time.Hour)

	for _, dp := range []*models.DataPoint{
		{FormID: 1, UserID: 1, UUID: "new", Submitted: true, SubmittedAt: &now, CreatedAt: newer},
		{FormID: 1, UserID: 1, UUID: "old", Submitted: true, SubmittedAt: &now, CreatedAt: older},
		{FormID: 1, UserID: 2, UUID: "other-user", Submitted: true, SubmittedAt: &now, CreatedAt: older.Add(-time.Hour)},
		{FormID: 1, UserID: 1, UUID: "draft", CreatedAt: older.Add(-2 * time.Hour)},
	} {
		_, err := r.Save(ctx, dp)
		require.NoError(t, err)
	}

	pending, err := r.NextPendingSync(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "old", pending.DataPoint.UUID)
	assert.Equal(t, int64(100), pending.RemoteFormID)
	assert.Equal(t, `{"form":true}`, pending.FormJSON)

	has, err := r.HasPendingSync(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = r.HasPendingSync(ctx, 3)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMarkSynced(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now()

	_, err := r.Save(ctx, &models.DataPoint{
		FormID: 1, UserID: 1, UUID: "u1", Submitted: true, SubmittedAt: &now,
	})
	require.NoError(t, err)

	require.NoError(t, r.MarkSynced(ctx, "u1", now))

	dp, err := r.GetByUUID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, dp.SyncedAt)
	assert.False(t, dp.PendingSync())

	pending, err := r.NextPendingSync(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestMarkSynced_RefusesDrafts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	// draft: submittedAt never set, so acknowledgment must not apply
	_, err := r.Save(ctx, &models.DataPoint{FormID: 1, UserID: 1, UUID: "draft"})
	require.NoError(t, err)

	err = r.MarkSynced(ctx, "draft", time.Now())
	require.Error(t, err)

	dp, err := r.GetByUUID(ctx, "draft")
	require.NoError(t, err)
	assert.Nil(t, dp.SyncedAt)
}

func TestListByFormAndSubmitted(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now()

	_, err := r.Save(ctx, &models.DataPoint{FormID: 1, UserID: 1, UUID: "a", Submitted: true, SubmittedAt: &now})
	require.NoError(t, err)
	_, err = r.Save(ctx, &models.DataPoint{FormID: 1, UserID: 1, UUID: "b"})
	require.NoError(t, err)

	submitted, err := r.ListByFormAndSubmitted(ctx, 1, true, 1)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "a", submitted[0].UUID)

	drafts, err := r.ListByFormAndSubmitted(ctx, 1, false, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "b", drafts[0].UUID)
}

func TestUpdate_ClearsEmptiedColumns(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Save(ctx, &models.DataPoint{
		FormID:  1,
		UserID:  1,
		Name:    "to be emptied",
		Geo:     "1.2|3.4",
		UUID:    "uuid-clear",
		Answers: models.AnswerMap{"1": "value"},
		Repeats: map[string][]int{"5": {0}},
	})
	require.NoError(t, err)

	dp, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	dp.Answers = models.AnswerMap{}
	dp.Geo = ""
	dp.Repeats = nil
	require.NoError(t, r.Update(ctx, dp))

	// the emptied fields must not keep their previous stored values
	got, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Answers)
	assert.Empty(t, got.Geo)
	assert.Nil(t, got.Repeats)

	var raw string
	require.NoError(t, db.QueryRow(`SELECT json FROM datapoints WHERE id=?`, id).Scan(&raw))
	assert.Empty(t, raw)
}

func TestGetByID_CorruptedJSONFailsLoudly(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO datapoints (form, user, submitted, json, uuid) VALUES (1, 1, 0, '{"broken', 'x')`)
	require.NoError(t, err)

	_, err = r.GetByID(ctx, 1)
	require.Error(t, err)
}
