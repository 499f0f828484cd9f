// Package services composes repositories, the remote API, and the job queue
// into the flows the UI calls: enrollment, logout, pushing submissions, and
// pulling monitoring updates.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/client/cascades"
	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	configrepo "github.com/akvo/dws-datapro-sub000/internal/client/repositories/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/forms"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/sessions"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/users"
	"github.com/akvo/dws-datapro-sub000/internal/client/store"
	"github.com/akvo/dws-datapro-sub000/internal/cryptox"
	"github.com/akvo/dws-datapro-sub000/internal/dbx"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

type AuthService struct {
	db       *sql.DB
	client   *api.Client
	users    users.Repository
	config   configrepo.Repository
	sessions sessions.Repository
	forms    forms.Repository
	cascades *cascades.Manager
	logger   logging.Logger
}

func NewAuthService(db *sql.DB, client *api.Client, us users.Repository, cfg configrepo.Repository, ss sessions.Repository, fs forms.Repository, cm *cascades.Manager, logger logging.Logger) *AuthService {
	return &AuthService{
		db:       db,
		client:   client,
		users:    us,
		config:   cfg,
		sessions: ss,
		forms:    fs,
		cascades: cm,
		logger:   logger,
	}
}

// Login enrolls the device: exchange the code for a token, record the
// session, create the local user guarded by the passcode, then fetch the
// assigned forms and their cascade files.
func (s *AuthService) Login(ctx context.Context, code, passcode string) (*models.User, error) {
	auth, err := s.client.Authenticate(ctx, code)
	if err != nil {
		return nil, err
	}
	s.client.SetToken(auth.Token)

	if err := s.config.UpdateAuthenticationCode(ctx, code); err != nil {
		return nil, err
	}
	if _, err := s.sessions.Add(ctx, &models.Session{Token: auth.Token, Passcode: code}); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPasscode(passcode)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}
	userID, err := s.users.Add(ctx, &models.User{
		Name:     auth.Name,
		Password: hash,
		Token:    auth.Token,
	})
	if err != nil {
		return nil, err
	}
	if err := s.users.ToggleActive(ctx, userID); err != nil {
		return nil, err
	}

	for _, f := range auth.Formats {
		if err := s.fetchForm(ctx, userID, f.ID, f.Version, f.URL); err != nil {
			return nil, err
		}
	}

	s.logger.Info(ctx, "device enrolled", "user", userID, "forms", len(auth.Formats))
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) fetchForm(ctx context.Context, userID, formID int64, version, formURL string) error {
	raw, err := s.client.FetchForm(ctx, formURL)
	if err != nil {
		return fmt.Errorf("failed to fetch form %d: %w", formID, err)
	}

	var meta struct {
		Name     string   `json:"name"`
		Version  string   `json:"version"`
		Cascades []string `json:"cascades"`
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return fmt.Errorf("failed to parse form %d: %w", formID, err)
	}
	if version == "" {
		version = meta.Version
	}

	if _, err := s.forms.Upsert(ctx, &models.Form{
		UserID:  userID,
		FormID:  formID,
		Version: version,
		Name:    meta.Name,
		JSON:    raw,
	}); err != nil {
		return err
	}

	for _, source := range meta.Cascades {
		if err := s.cascades.Download(ctx, source, path.Base(source)); err != nil {
			return err
		}
	}
	return nil
}

// CheckPasscode unlocks the app for an enrolled user and makes them active.
func (s *AuthService) CheckPasscode(ctx context.Context, passcode string) (*models.User, error) {
	user, err := s.users.CheckPasscode(ctx, passcode)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !user.Active {
		if err := s.users.ToggleActive(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Active = true
	}
	s.client.SetToken(user.Token)
	return user, nil
}

// RestoreSession reinstalls the last session's token on the API client so a
// restarted app can sync without re-authenticating.
func (s *AuthService) RestoreSession(ctx context.Context) error {
	session, err := s.sessions.Last(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := api.CheckToken(session.Token, time.Now()); err != nil {
		return err
	}
	s.client.SetToken(session.Token)
	return nil
}

var teardownTables = []string{
	"jobs", "datapoints", "monitoring", "certifications",
	"forms", "sessions", "users",
}

// Logout wipes every user-scoped table in one transaction and removes the
// cascade files. The config row survives so the server URL is kept for the
// next enrollment.
func (s *AuthService) Logout(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		st := store.New(tx)
		for _, table := range teardownTables {
			if err := st.Truncate(ctx, table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	if err := s.cascades.DropFiles(ctx); err != nil {
		return err
	}
	s.client.SetToken("")
	s.logger.Info(ctx, "logged out, local data cleared")
	return nil
}
