package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_overlaysFile(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://studio.example.com
  timeout: 10s
store:
  backend: redis
  redis:
    addr: cache:6379
    db: 2
dashboard:
  cors_origins:
    - https://app.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://studio.example.com", cfg.Server.URL)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "X-Tenant-ID", cfg.Server.TenantHeader, "unset fields keep their defaults")
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "127.0.0.1:8080", cfg.Dashboard.Listen)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Dashboard.CORSOrigins)
}

func TestLoad_invalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unterminated"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad server url", mutate: func(c *Config) { c.Server.URL = "studio" }, wantErr: true},
		{name: "missing tenant header", mutate: func(c *Config) { c.Server.TenantHeader = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "sqlite" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Backend = BackendPostgres }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Store.Postgres.ConnString = "postgres://localhost/studio"
		}},
		{name: "redis without addr", mutate: func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.Redis.Addr = ""
		}, wantErr: true},
		{name: "bad listen address", mutate: func(c *Config) { c.Dashboard.Listen = "nowhere" }, wantErr: true},
		{name: "bad cors origin", mutate: func(c *Config) { c.Dashboard.CORSOrigins = []string{"not a url"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
