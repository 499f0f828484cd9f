package config

import (
	"context"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Repository manages the singleton device-settings row. The row id is fixed
// to common.ConfigRowID so every reader and writer agrees on it.
type Repository interface {
	// Get returns the settings row, or nil before first install.
	Get(ctx context.Context) (*models.Config, error)

	// Save creates the row on first call and fully replaces it afterwards.
	Save(ctx context.Context, cfg *models.Config) error

	// UpdateAuthenticationCode stores the passcode used at enrollment.
	UpdateAuthenticationCode(ctx context.Context, code string) error
}
