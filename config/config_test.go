package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, ":5200", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/api/v1/badge-events", cfg.Sync.EventsPath)
	assert.Equal(t, 15*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 8, cfg.Backfill.Workers)
	assert.Equal(t, time.Hour, cfg.Backfill.RunLease)
	assert.Equal(t, "admin", cfg.Gateway.AdminRole)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":9000"
sync:
  enabled: true
  service_url: "http://file.example"
  batch_size: 50
backfill:
  workers: 2
`), 0o600))

	t.Setenv("SYNC_SERVICE_URL", "http://env.example")
	t.Setenv("SYNC_INTERVAL", "2m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("BACKFILL_RUN_LEASE", "20m")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, "http://env.example", cfg.Sync.ServiceURL, "env wins over file")
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 2, cfg.Backfill.Workers)
	assert.Equal(t, 20*time.Minute, cfg.Backfill.RunLease)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "secret", cfg.SyncToken())
	assert.Equal(t, "console", cfg.Logging.ToLogging().Format)
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	t.Setenv("BACKFILL_WORKERS", "0")
	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.workers")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestRequireServer(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.RequireServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GAME_SERVICE_TOKEN")

	cfg.Database.URL = "postgres://localhost/badges"
	cfg.Gateway.Token = "t"
	require.NoError(t, cfg.RequireServer())

	cfg.Backfill.Enabled = true
	require.ErrorContains(t, cfg.RequireServer(), "R2_BUCKET_NAME")
	cfg.R2.Bucket = "badges"
	cfg.R2.Endpoint = "http://localhost:9000"
	require.NoError(t, cfg.RequireServer())

	cfg.Sync.ServiceToken = "own"
	assert.Equal(t, "own", cfg.SyncToken())
}
