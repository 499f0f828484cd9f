package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/akvo/dws-datapro-sub000/internal/client/migrations"

	_ "modernc.org/sqlite"
)

// InitDatabase opens (or creates) the local store and brings the schema up
// to date with the embedded migrations. First launch and upgrade are the
// same code path; migrations are idempotent.
func InitDatabase(ctx context.Context, file string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single writer sidesteps SQLITE_BUSY under concurrent ticks
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
