// Package client assembles the application: database, repositories, remote
// API, services, job queue and orchestrator, wired from the bootstrap
// config the way the UI layer consumes them.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/akvo/dws-datapro-sub000/internal/buildinfo"
	"github.com/akvo/dws-datapro-sub000/internal/client/api"
	"github.com/akvo/dws-datapro-sub000/internal/client/cascades"
	"github.com/akvo/dws-datapro-sub000/internal/client/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/datapoint"
	"github.com/akvo/dws-datapro-sub000/internal/client/jobqueue"
	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/certifications"
	configrepo "github.com/akvo/dws-datapro-sub000/internal/client/repositories/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/datapoints"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/forms"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/jobs"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/monitoring"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/sessions"
	"github.com/akvo/dws-datapro-sub000/internal/client/repositories/users"
	"github.com/akvo/dws-datapro-sub000/internal/client/services"
	syncpkg "github.com/akvo/dws-datapro-sub000/internal/client/sync"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
	"github.com/akvo/dws-datapro-sub000/internal/netx"
)

// Repositories bundles every entity repository over one database handle.
type Repositories struct {
	Users          users.Repository
	Config         configrepo.Repository
	Sessions       sessions.Repository
	Forms          forms.Repository
	Datapoints     datapoints.Repository
	Jobs           jobs.Repository
	Monitoring     monitoring.Repository
	Certifications certifications.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:          users.NewSQLiteRepository(db),
		Config:         configrepo.NewSQLiteRepository(db),
		Sessions:       sessions.NewSQLiteRepository(db),
		Forms:          forms.NewSQLiteRepository(db),
		Datapoints:     datapoints.NewSQLiteRepository(db),
		Jobs:           jobs.NewSQLiteRepository(db),
		Monitoring:     monitoring.NewSQLiteRepository(db),
		Certifications: certifications.NewSQLiteRepository(db),
	}
}

type App struct {
	DB           *sql.DB
	Repos        *Repositories
	API          *api.Client
	Cascades     *cascades.Manager
	Auth         *services.AuthService
	Datapoints   *datapoint.Manager
	Engine       *jobqueue.Engine
	Orchestrator *syncpkg.Orchestrator
	Logger       logging.Logger
}

// New builds the full application from bootstrap config. network may be nil,
// in which case wi-fi connectivity is assumed (desktop builds have no
// cellular path).
func New(ctx context.Context, cfg *config.Config, network netx.Prober, logger logging.Logger) (*App, error) {
	db, err := InitDatabase(ctx, filepath.Join(cfg.DataDir, cfg.DatabaseFile))
	if err != nil {
		return nil, err
	}

	repos := NewRepositories(db)

	// seed the settings row on first launch
	deviceCfg, err := repos.Config.Get(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if deviceCfg == nil {
		if err := repos.Config.Save(ctx, &models.Config{
			AppVersion:   buildinfo.Version,
			ServerURL:    cfg.ServerURL,
			SyncInterval: 300,
		}); err != nil {
			db.Close()
			return nil, err
		}
	}

	apiClient := api.NewClient(cfg.ServerURL, logger)

	cascadeDir := filepath.Join(cfg.DataDir, "cascades")
	cascadeMgr, err := cascades.NewManager(cascadeDir, apiClient, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init cascade storage: %w", err)
	}

	if network == nil {
		network = netx.Static(netx.StateWifi)
	}

	engine := jobqueue.NewEngine(repos.Jobs, repos.Config, network, logger)
	engine.Register(models.JobTypeFormSubmission,
		services.NewSubmissionService(apiClient, repos.Datapoints, repos.Users, logger))
	engine.Register(models.JobTypeFormDatapoints,
		services.NewPullService(apiClient, repos.Monitoring, repos.Datapoints, logger))

	app := &App{
		DB:       db,
		Repos:    repos,
		API:      apiClient,
		Cascades: cascadeMgr,
		Auth: services.NewAuthService(db, apiClient, repos.Users, repos.Config,
			repos.Sessions, repos.Forms, cascadeMgr, logger),
		Datapoints: datapoint.NewManager(repos.Datapoints, repos.Forms, repos.Jobs, logger),
		Engine:     engine,
		Orchestrator: syncpkg.NewOrchestrator(engine, repos.Jobs, repos.Users,
			repos.Config, cfg.SyncTimeout, logger),
		Logger: logger,
	}
	return app, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.DB.Close()
}
