package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "datapro.db", cfg.DatabaseFile)
	assert.Equal(t, 60*time.Second, cfg.SyncTimeout)
	assert.NotEmpty(t, cfg.ServerURL)
}

func TestParseJson_Overlay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.json")
	payload := map[string]any{
		"server_url":   "https://example.org/api/v1/device",
		"sync_timeout": "90s",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0o600))

	oldArgs := os.Args
	os.Args = []string{"client", "-c", file}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "https://example.org/api/v1/device", cfg.ServerURL)
	assert.Equal(t, 90*time.Second, cfg.SyncTimeout)
	// untouched fields keep their defaults
	assert.Equal(t, "datapro.db", cfg.DatabaseFile)
}

func TestParseFlags_Overlay(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"client", "-s", "https://flags.example.org", "-t", "15"}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "https://flags.example.org", cfg.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.SyncTimeout)
}
