package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/config"
	"github.com/wolfeidau/studiodesk/internal/credentials"
	"github.com/wolfeidau/studiodesk/internal/session"
	"github.com/wolfeidau/studiodesk/internal/store"
	"github.com/wolfeidau/studiodesk/internal/store/file"
	"github.com/wolfeidau/studiodesk/internal/store/memory"
	"github.com/wolfeidau/studiodesk/internal/store/postgres"
	"github.com/wolfeidau/studiodesk/internal/store/redis"
	"github.com/wolfeidau/studiodesk/internal/telemetry"
	"github.com/wolfeidau/studiodesk/internal/tenants"
)

type Globals struct {
	Debug       bool   `help:"Enable debug mode."`
	Config      string `help:"Config file (default: ~/.studiodesk/config.yaml)."`
	Server      string `help:"API base URL, overrides the config file." env:"STUDIODESK_SERVER"`
	Store       string `help:"Session store backend (file, memory, postgres, redis)." env:"STUDIODESK_STORE"`
	StoreDir    string `help:"Directory used by the file store (default: ~/.studiodesk/)." env:"STUDIODESK_STORE_DIR"`
	PostgresURL string `help:"PostgreSQL connection string for the postgres store." env:"DATABASE_URL"`
	RedisAddr   string `help:"Redis address for the redis store." env:"REDIS_ADDR"`
	Tracing     bool   `help:"Export traces and metrics over OTLP." env:"STUDIODESK_TRACING"`
	Version     string `kong:"-"`
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(globals *Globals) (*config.Config, error) {
	path := globals.Config
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if globals.Server != "" {
		cfg.Server.URL = globals.Server
	}
	if globals.Store != "" {
		cfg.Store.Backend = globals.Store
	}
	if globals.StoreDir != "" {
		cfg.Store.Dir = globals.StoreDir
	}
	if globals.PostgresURL != "" {
		cfg.Store.Postgres.ConnString = globals.PostgresURL
	}
	if globals.RedisAddr != "" {
		cfg.Store.Redis.Addr = globals.RedisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func openKV(ctx context.Context, cfg config.StoreConfig) (store.KV, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewKV(), nil
	case config.BackendPostgres:
		return postgres.NewKV(ctx,
			&postgres.PoolConfig{ConnString: cfg.Postgres.ConnString},
			&postgres.KVConfig{Namespace: cfg.Postgres.Namespace, AutoMigrate: cfg.Postgres.AutoMigrate},
		)
	case config.BackendRedis:
		return redis.NewKV(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
	default:
		return file.NewKV(cfg.Dir)
	}
}

// env is the wiring shared by every command that talks to the API.
type env struct {
	cfg        *config.Config
	kv         store.KV
	manager    *session.Manager
	binder     *client.Binder
	httpClient *http.Client
	api        *client.API
	syncer     *tenants.Syncer
	shutdown   telemetry.ShutdownFunc
}

func openEnv(ctx context.Context, globals *Globals) (*env, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}

	if globals.Tracing {
		e.shutdown, err = telemetry.Init(ctx, telemetry.Options{ServiceName: "studioctl", Version: globals.Version})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	e.kv, err = openKV(ctx, cfg.Store)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	e.manager = session.Open(ctx, credentials.NewStore(e.kv), credentials.NewTenantSelector(e.kv))

	clientCfg := client.Config{
		ServerURL:                cfg.Server.URL,
		Timeout:                  cfg.Server.Timeout,
		TenantHeader:             cfg.Server.TenantHeader,
		InvalidateOnUnauthorized: cfg.Server.InvalidateOnUnauthorized,
	}

	e.httpClient, e.binder = client.NewHTTPClient(clientCfg, e.manager)

	e.api, err = client.NewAPI(clientCfg, e.httpClient)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	e.syncer = tenants.NewSyncer(e.manager, e.api)

	log.Debug().
		Str("server", cfg.Server.URL).
		Str("store", cfg.Store.Backend).
		Str("state", e.manager.Snapshot().State().String()).
		Msg("environment ready")

	return e, nil
}

func (e *env) Close() {
	if e.binder != nil {
		e.binder.Close()
	}

	if e.kv != nil {
		if err := e.kv.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}

	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to shut down telemetry")
		}
	}
}

func requireLogin(snap session.Snapshot) error {
	if !snap.IsAuthenticated() {
		return fmt.Errorf("%w, run: studioctl login", session.ErrNotLoggedIn)
	}
	return nil
}

func formatTenant(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}
