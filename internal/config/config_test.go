package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path = "custom.db"

[edgar]
user_agent = "acme scanner admin@acme.example"

[cluster]
min_cluster_size = 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Cluster.MinClusterSize)
	// Untouched values keep their backtest defaults.
	assert.Equal(t, 14, cfg.Cluster.WindowDays)
	assert.InDelta(t, 250_000, cfg.Sell.SweetSpotMin, 0.01)
	assert.InDelta(t, 5.0, cfg.Cross.DTCThreshold, 0.001)
}

func TestLoadRequiresUserAgent(t *testing.T) {
	t.Setenv("SCANNER_EDGAR_USER_AGENT", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCANNER_EDGAR_USER_AGENT", "acme scanner admin@acme.example")
	t.Setenv("SCANNER_DB_PATH", "/tmp/env.db")
	t.Setenv("SCANNER_SMTP_PORT", "2525")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "acme scanner admin@acme.example", cfg.Edgar.UserAgent)
}
