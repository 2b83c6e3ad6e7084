package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
db_path: /var/lib/bakehouse.db
log:
  level: debug
  format: console
http:
  addr: 127.0.0.1:9000
  read_timeout: 3s
schedules:
  - tenant: t1
    location: main
    cron: "0 5 * * MON"
    note: weekly count
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bakehouse.db", cfg.DBPath)
	assert.Equal(t, Log{Level: "debug", Format: "console"}, cfg.Log)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "weekly count", cfg.Schedules[0].Note)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "databse: x"},
		{"bad level", "log: {level: loud}"},
		{"bad format", "log: {format: xml}"},
		{"bad cron", "schedules: [{tenant: t1, location: main, cron: 'every day'}]"},
		{"missing location", "schedules: [{tenant: t1, cron: '@daily'}]"},
		{"zero burst", "http: {rate_burst: 0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bakehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: from-file.db\n"), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BAKEHOUSE_LOG_FORMAT=console\nBAKEHOUSE_HTTP_ADDR=:7000\n"), 0o644))

	t.Cleanup(func() { os.Unsetenv("BAKEHOUSE_LOG_FORMAT") })
	t.Setenv("BAKEHOUSE_DB", "from-env.db")
	t.Setenv("BAKEHOUSE_HTTP_ADDR", ":9999")
	t.Setenv("BAKEHOUSE_RATE_LIMIT", "2.5")

	cfg, err := Load(path, envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("BAKEHOUSE_RATE_BURST", "lots")
	_, err := Load("")
	assert.ErrorContains(t, err, "RATE_BURST")
}
