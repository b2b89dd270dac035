package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/store"
)

// Config holds the connection settings for the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Namespace is prefixed to every key, e.g. "studiodesk:default:token".
	Namespace string
}

// KV implements store.KV on Redis. Values carry no expiry so they survive
// until they are deleted, matching the other durable backends.
type KV struct {
	client *goredis.Client
	prefix string
}

// NewKV connects to Redis and verifies the connection with a ping.
func NewKV(ctx context.Context, cfg Config) (*KV, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Debug().Str("addr", cfg.Addr).Str("namespace", cfg.Namespace).Msg("redis store initialized")

	return NewKVWithClient(client, cfg.Namespace), nil
}

// NewKVWithClient wraps an existing client.
func NewKVWithClient(client *goredis.Client, namespace string) *KV {
	return &KV{
		client: client,
		prefix: "studiodesk:" + namespace + ":",
	}
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return value, nil
}

// Put stores value under key without expiry.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes key, missing keys are ignored.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Close closes the underlying client.
func (s *KV) Close() error {
	return s.client.Close()
}
