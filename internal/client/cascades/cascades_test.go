package cascades

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/logging"

	_ "modernc.org/sqlite"
)

func writeCascadeFile(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE nodes (id INTEGER PRIMARY KEY, name TEXT, parent INTEGER);
INSERT INTO nodes (id, name, parent) VALUES
  (1, 'North District', NULL),
  (2, 'South District', NULL),
  (3, 'Village A', 1),
  (4, 'Village B', 1);`)
	require.NoError(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeCascadeFile(t, filepath.Join(dir, "administration.sqlite"))

	m, err := NewManager(dir, nil, logging.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	roots, err := m.Load(ctx, "administration.sqlite", nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "North District", roots[0].Name)
	assert.Nil(t, roots[0].Parent)

	parent := int64(1)
	children, err := m.Load(ctx, "administration.sqlite", &parent)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Village A", children[0].Name)
	require.NotNil(t, children[0].Parent)
	assert.Equal(t, int64(1), *children[0].Parent)
}

func TestDownload_SkipsExistingAndDropFiles(t *testing.T) {
	srcDir := t.TempDir()
	writeCascadeFile(t, filepath.Join(srcDir, "administration.sqlite"))
	payload, err := os.ReadFile(filepath.Join(srcDir, "administration.sqlite"))
	require.NoError(t, err)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	m, err := NewManager(dir, api.NewClient(srv.URL, logging.NewNopLogger()), logging.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Download(ctx, "/cascades/administration.sqlite", "administration.sqlite"))
	assert.Equal(t, 1, calls)

	// second download is a no-op
	require.NoError(t, m.Download(ctx, "/cascades/administration.sqlite", "administration.sqlite"))
	assert.Equal(t, 1, calls)

	nodes, err := m.Load(ctx, "administration.sqlite", nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	require.NoError(t, m.DropFiles(ctx))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
