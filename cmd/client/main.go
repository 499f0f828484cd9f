package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akvo/dws-datapro-sub000/internal/buildinfo"
	"github.com/akvo/dws-datapro-sub000/internal/client/cli"
	"github.com/akvo/dws-datapro-sub000/internal/client/config"
	"github.com/akvo/dws-datapro-sub000/internal/logging"
)

func main() {
	buildinfo.Print()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
