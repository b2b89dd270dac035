package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the optional YAML configuration shared by every command.
// Command line flags override it.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

type ServerConfig struct {
	URL                      string        `yaml:"url" validate:"required,http_url"`
	Timeout                  time.Duration `yaml:"timeout"`
	TenantHeader             string        `yaml:"tenant_header" validate:"required"`
	InvalidateOnUnauthorized bool          `yaml:"invalidate_on_unauthorized"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend" validate:"oneof=file memory postgres redis"`
	Dir      string         `yaml:"dir"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

type PostgresConfig struct {
	ConnString  string `yaml:"conn_string"`
	Namespace   string `yaml:"namespace" validate:"omitempty,max=64"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	Namespace string `yaml:"namespace" validate:"omitempty,max=64"`
}

type DashboardConfig struct {
	Listen      string   `yaml:"listen" validate:"required,hostname_port"`
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,http_url"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:                      "http://127.0.0.1:8002",
			Timeout:                  30 * time.Second,
			TenantHeader:             "X-Tenant-ID",
			InvalidateOnUnauthorized: true,
		},
		Store: StoreConfig{
			Backend: BackendFile,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Dashboard: DashboardConfig{
			Listen: "127.0.0.1:8080",
		},
	}
}

// DefaultPath returns ~/.studiodesk/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".studiodesk", "config.yaml"), nil
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field formats and backend specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.Postgres.ConnString == "" {
			return errors.New("invalid config: store.postgres.conn_string is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("invalid config: store.redis.addr is required for the redis backend")
		}
	}

	return nil
}
