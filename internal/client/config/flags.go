package config

import (
	"flag"
	"os"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   base URL of the remote API (default from Config)
//	-f string   path to the local SQLite database file
//	-d string   data directory for auxiliary files (cascade databases)
//	-t int      sync operation timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-f", "-d", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the remote API")
	fs.StringVar(&cfg.DatabaseFile, "f", cfg.DatabaseFile, "path to the local database file")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for auxiliary files")
	syncTimeout := fs.Int("t", int(cfg.SyncTimeout.Seconds()), "sync timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncTimeout = time.Duration(*syncTimeout) * time.Second
}
