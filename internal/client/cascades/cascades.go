// Package cascades manages the read-only hierarchical lookup databases that
// back cascade questions. Each cascade ships as a standalone SQLite file
// downloaded next to the primary store and addressed by filename.
package cascades

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

// Node is one entry of a cascade hierarchy. Parent is nil at the roots.
type Node struct {
	ID     int64
	Name   string
	Parent *int64
}

type Manager struct {
	dir    string
	client *api.Client
	logger logging.Logger
}

// NewManager ensures dir exists and returns a manager rooted there.
func NewManager(dir string, client *api.Client, logger logging.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cascade directory: %w", err)
	}
	return &Manager{dir: dir, client: client, logger: logger}, nil
}

// Download fetches one cascade database into the managed directory. An
// existing file with the same name is kept as-is; cascades are versioned by
// filename on the server side.
func (m *Manager) Download(ctx context.Context, fileURL, filename string) error {
	path := filepath.Join(m.dir, filename)
	if _, err := os.Stat(path); err == nil {
		m.logger.Debug(ctx, "cascade already present", "file", filename)
		return nil
	}

	tmp, err := os.CreateTemp(m.dir, filename+".*")
	if err != nil {
		return fmt.Errorf("failed to create cascade temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.client.DownloadFile(ctx, fileURL, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download cascade %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install cascade %s: %w", filename, err)
	}
	m.logger.Info(ctx, "cascade downloaded", "file", filename)
	return nil
}

// Load returns the children of parent in the named cascade. A nil parent
// loads the root level.
func (m *Manager) Load(ctx context.Context, filename string, parent *int64) ([]Node, error) {
	path := filepath.Join(m.dir, filename)
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open cascade %s: %w", filename, err)
	}
	defer db.Close()

	var rows *sql.Rows
	if parent == nil {
		rows, err = db.QueryContext(ctx, `SELECT id, name, parent FROM nodes WHERE parent IS NULL ORDER BY name`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT id, name, parent FROM nodes WHERE parent = ? ORDER BY name`, *parent)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cascade %s: %w", filename, err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var p sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Name, &p); err != nil {
			return nil, fmt.Errorf("failed to scan cascade node: %w", err)
		}
		if p.Valid {
			n.Parent = &p.Int64
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// DropFiles removes every cascade file. Called on logout so the next
// enrollment starts clean.
func (m *Manager) DropFiles(ctx context.Context) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cascade directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove cascade %s: %w", entry.Name(), err)
		}
	}
	m.logger.Info(ctx, "cascade files removed", "count", len(entries))
	return nil
}
