// Package cli is a terminal front end for the data collection client:
// enroll, unlock, browse forms and datapoints, and drive the sync engine by
// hand. The mobile UI talks to the same application layer.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/akvo/dws-datapro-sub000/internal/client/client"
	"github.com/akvo/dws-datapro-sub000/internal/client/config"
	"github.com/akvo/dws-datapro-sub000/internal/client/models"
	"github.com/akvo/dws-datapro-sub000/internal/common"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
	"github.com/akvo/dws-datapro-sub000/internal/netx"
)

type App struct {
	app    *client.App
	user   *models.User
	reader *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	app, err := client.New(ctx, cfg, netx.Static(netx.StateWifi), logger)
	if err != nil {
		return nil, err
	}
	return &App{app: app, reader: bufio.NewReader(os.Stdin)}, nil
}

// Run starts the orchestrator in the background and drops into the REPL.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.app.Close()

	if err := a.app.Auth.RestoreSession(ctx); err != nil {
		fmt.Println("session expired, please login again")
	}
	go func() { _ = a.app.Orchestrator.Run(ctx) }()

	a.repl(ctx)
}

func (a *App) isUnlocked() bool { return a.user != nil }

func (a *App) login(ctx context.Context) error {
	code, err := GetSimpleText(a.reader, "Enrollment code", os.Stdout)
	if err != nil {
		return err
	}
	passcode, err := GetPasscode(os.Stdout, "Choose a passcode")
	if err != nil {
		return err
	}
	user, err := a.app.Auth.Login(ctx, code, passcode)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			fmt.Println("enrollment code rejected")
			return nil
		}
		return err
	}
	a.user = user
	fmt.Printf("enrolled as %s\n", user.Name)
	return nil
}

func (a *App) unlock(ctx context.Context) error {
	passcode, err := GetPasscode(os.Stdout, "Passcode")
	if err != nil {
		return err
	}
	user, err := a.app.Auth.CheckPasscode(ctx, passcode)
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Println("wrong passcode")
		return nil
	}
	a.user = user
	fmt.Printf("unlocked as %s\n", user.Name)
	return nil
}

func (a *App) listForms(ctx context.Context) error {
	forms, err := a.app.Repos.Forms.ListLatest(ctx)
	if err != nil {
		return err
	}
	if len(forms) == 0 {
		fmt.Println("no forms downloaded")
		return nil
	}
	for _, f := range forms {
		fmt.Printf("%4d  %-30s v%s\n", f.ID, f.Name, f.Version)
	}
	return nil
}

func (a *App) listDatapoints(ctx context.Context, args []string, submitted bool) error {
	if len(args) == 0 {
		fmt.Println("usage: list <form-id> | drafts <form-id>")
		return nil
	}
	formID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("form id must be a number")
		return nil
	}
	dps, err := a.app.Repos.Datapoints.ListByFormAndSubmitted(ctx, formID, submitted, a.user.ID)
	if err != nil {
		return err
	}
	for _, dp := range dps {
		state := "draft"
		if dp.SyncedAt != nil {
			state = "synced"
		} else if dp.Submitted {
			state = "submitted"
		}
		fmt.Printf("%4d  %-30s %-9s %s\n", dp.ID, dp.Name, state, dp.UUID)
	}
	fmt.Printf("%d record(s)\n", len(dps))
	return nil
}

func (a *App) syncNow(ctx context.Context) error {
	err := a.app.Orchestrator.SyncNow(ctx, models.JobTypeFormSubmission)
	if errors.Is(err, common.ErrSyncInProgress) {
		fmt.Println("already syncing")
		return nil
	}
	if err != nil {
		return err
	}
	// uploaded submissions change the server-side list; refresh it in the
	// background
	a.app.Orchestrator.NotifyDatapointsChanged()
	fmt.Println("sync finished")
	return nil
}

func (a *App) pullNow(ctx context.Context) error {
	err := a.app.Orchestrator.SyncNow(ctx, models.JobTypeFormDatapoints)
	if errors.Is(err, common.ErrSyncInProgress) {
		fmt.Println("already pulling")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("datapoints refreshed")
	return nil
}

func (a *App) status(ctx context.Context) error {
	status, err := a.app.Orchestrator.Status(ctx, models.JobTypeFormSubmission)
	if err != nil {
		return err
	}
	fmt.Printf("sync: %s\n", status)
	if a.user != nil {
		user, err := a.app.Repos.Users.GetByID(ctx, a.user.ID)
		if err != nil {
			return err
		}
		if user != nil && user.LastSyncedAt != nil {
			fmt.Printf("last synced: %s\n", user.LastSyncedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.app.Auth.Logout(ctx); err != nil {
		return err
	}
	a.user = nil
	fmt.Println("logged out")
	return nil
}
