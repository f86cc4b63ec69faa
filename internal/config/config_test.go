package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Service.Host)
	assert.Equal(t, 3200, cfg.Service.Port)
	assert.Equal(t, 2*time.Second, cfg.Service.ProbeTimeout.Duration())
	assert.Equal(t, "hash", cfg.Embedding.Backend)
	assert.Equal(t, 10*time.Second, cfg.Supervisor.PollInterval.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
data_dir: ` + dir + `
service:
  port: 4500
  probe_timeout: 5s
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 4500, cfg.Service.Port)
	assert.Equal(t, 5*time.Second, cfg.Service.ProbeTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep defaults.
	assert.Equal(t, "127.0.0.1", cfg.Service.Host)
	assert.Equal(t, 3, cfg.Supervisor.FailureThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  port: 4500\n"), 0o600))

	t.Setenv("INGAT_SERVICE_PORT", "4600")
	t.Setenv("INGAT_LOGGING_FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4600, cfg.Service.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  port: 99999\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service.port")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "empty host", mutate: func(c *Config) { c.Service.Host = "" }},
		{name: "zero port", mutate: func(c *Config) { c.Service.Port = 0 }},
		{name: "zero probe timeout", mutate: func(c *Config) { c.Service.ProbeTimeout = 0 }},
		{name: "zero poll interval", mutate: func(c *Config) { c.Supervisor.PollInterval = 0 }},
		{name: "zero failure threshold", mutate: func(c *Config) { c.Supervisor.FailureThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}
