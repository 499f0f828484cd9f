package config

import "time"

// Config holds bootstrap settings for the data collection client. Runtime
// settings that users change from the device (sync interval, Wi-Fi-only
// flag, language, GPS thresholds) live in the config table instead; this
// struct only carries what is needed before the database is open.
//
// Units: SyncTimeout and OnlineCheckInterval are time.Durations.
type Config struct {
	ServerURL           string
	DatabaseFile        string
	DataDir             string
	SyncTimeout         time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/api/v1/device"
	c.DatabaseFile = "datapro.db"
	c.DataDir = "."
	c.SyncTimeout = 60 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
