package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/store"
)

// KV implements store.KV on a PostgreSQL table, letting a client keep its
// session state in a shared database instead of the local filesystem.
type KV struct {
	pool      *pgxpool.Pool
	cfg       *KVConfig
	ownsPool  bool
	namespace string
}

// NewKV opens a pool from poolCfg and returns a store backed by it.
func NewKV(ctx context.Context, poolCfg *PoolConfig, cfg *KVConfig) (*KV, error) {
	pool, err := NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	kv, err := NewKVWithPool(ctx, pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	kv.ownsPool = true

	return kv, nil
}

// NewKVWithPool returns a store using an existing pool. The pool is not closed by Close.
func NewKVWithPool(ctx context.Context, pool *pgxpool.Pool, cfg *KVConfig) (*KV, error) {
	if cfg == nil {
		cfg = &KVConfig{}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kv config: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrate(ctx, pool); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("namespace", cfg.Namespace).Msg("postgres store initialized")

	return &KV{pool: pool, cfg: cfg, namespace: cfg.Namespace}, nil
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM client_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classify("get "+key, err)
	}

	return value, nil
}

// Put upserts value under key.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_state (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, s.namespace, key, value)

	return classify("put "+key, err)
}

// Delete removes key, missing keys are ignored.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`DELETE FROM client_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	)

	return classify("delete "+key, err)
}

// Close closes the pool when the store created it.
func (s *KV) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func (s *KV) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}
