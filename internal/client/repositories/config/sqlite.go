package config

import (
	"context"
	"fmt"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
)

const tableName = "config"

type SQLiteRepository struct {
	store *store.Store
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{store: store.New(db)}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*models.Config, error) {
	row, err := r.store.SelectOne(ctx, tableName, store.Criteria{"id": common.ConfigRowID}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to select config: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return &models.Config{
		ID:                 row.Int64("id"),
		AppVersion:         row.String("appVersion"),
		AuthenticationCode: row.String("authenticationCode"),
		ServerURL:          row.String("serverURL"),
		SyncInterval:       row.Float64("syncInterval"),
		SyncWifiOnly:       row.Bool("syncWifiOnly"),
		Lang:               row.String("lang"),
		GPSThreshold:       row.OptionalInt64("gpsThreshold"),
		GPSAccuracyLevel:   row.OptionalInt64("gpsAccuracyLevel"),
		GeoLocationTimeout: row.OptionalInt64("geoLocationTimeout"),
	}, nil
}

// Save upserts the singleton row. ON CONFLICT keeps it a single logical
// operation even when settings screens and the auth flow race.
func (r *SQLiteRepository) Save(ctx context.Context, cfg *models.Config) error {
	wifiOnly := 0
	if cfg.SyncWifiOnly {
		wifiOnly = 1
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "en"
	}
	_, err := r.store.Exec(ctx, `
		INSERT INTO config (id, appVersion, authenticationCode, serverURL, syncInterval,
			syncWifiOnly, lang, gpsThreshold, gpsAccuracyLevel, geoLocationTimeout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			appVersion = excluded.appVersion,
			authenticationCode = excluded.authenticationCode,
			serverURL = excluded.serverURL,
			syncInterval = excluded.syncInterval,
			syncWifiOnly = excluded.syncWifiOnly,
			lang = excluded.lang,
			gpsThreshold = excluded.gpsThreshold,
			gpsAccuracyLevel = excluded.gpsAccuracyLevel,
			geoLocationTimeout = excluded.geoLocationTimeout
	`, common.ConfigRowID, cfg.AppVersion, cfg.AuthenticationCode, cfg.ServerURL,
		cfg.SyncInterval, wifiOnly, lang,
		optional(cfg.GPSThreshold), optional(cfg.GPSAccuracyLevel), optional(cfg.GeoLocationTimeout))
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAuthenticationCode(ctx context.Context, code string) error {
	_, err := r.store.Update(ctx, tableName,
		store.Criteria{"id": common.ConfigRowID},
		store.Values{"authenticationCode": code})
	if err != nil {
		return fmt.Errorf("failed to update authentication code: %w", err)
	}
	return nil
}

func optional(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
