package store

import (
	"context"
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

// Well known keys persisted by the client.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyActiveTenant = "activeTenantId"
)

// KV defines the durable key/value facility used to persist session state
// across process restarts.
//
// Implementations return ErrNotFound from Get when the key is absent, and
// Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateKey checks a key is usable by every backend.
func ValidateKey(key string) error {
	if key == "" || len(key) > 128 {
		return ErrInvalidKey
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return ErrInvalidKey
		}
	}
	return nil
}
