package forms

import (
	"context"
	"database/sql"
	"testing"

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
CREATE TABLE forms (
  id INTEGER PRIMARY KEY NOT NULL,
  parentId INTEGER NULL,
  userId INTEGER NULL,
  formId INTEGER NOT NULL,
  version VARCHAR(255),
  latest TINYINT,
  name VARCHAR(255),
  json TEXT,
  createdAt DATETIME
);
`)
	require.NoError(t, err)
	return db
}

func TestUpsert_NewVersionDemotesOld(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	v1, err := r.Upsert(ctx, &models.Form{FormID: 10, Version: "1", Name: "Household", JSON: "{}"})
	require.NoError(t, err)

	v2, err := r.Upsert(ctx, &models.Form{FormID: 10, Version: "2", Name: "Household", JSON: "{}"})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	latest, err := r.GetByFormID(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2", latest.Version)
	assert.Equal(t, v2, latest.ID)

	old, err := r.GetByID(ctx, v1)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.Latest)
}

func TestUpsert_SameVersionRefreshesInPlace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id1, err := r.Upsert(ctx, &models.Form{FormID: 10, Version: "1", Name: "a", JSON: `{"v":1}`})
	require.NoError(t, err)
	id2, err := r.Upsert(ctx, &models.Form{FormID: 10, Version: "1", Name: "b", JSON: `{"v":2}`})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	form, err := r.GetByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "b", form.Name)
	assert.Equal(t, `{"v":2}`, form.JSON)
}

func TestGetByFormID_Miss(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	form, err := r.GetByFormID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, form)
}

func TestListLatest(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.Upsert(ctx, &models.Form{FormID: 10, Version: "1", Name: "b"})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, &models.Form{FormID: 10, Version: "2", Name: "b"})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, &models.Form{FormID: 20, Version: "1", Name: "a"})
	require.NoError(t, err)

	forms, err := r.ListLatest(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "a", forms[0].Name)
	assert.Equal(t, "b", forms[1].Name)
}
