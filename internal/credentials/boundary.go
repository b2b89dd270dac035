package credentials

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/store"
)

type shadowEntry struct {
	value   []byte
	deleted bool
}

// boundary wraps a store.KV so that storage failures never reach callers.
// Failed reads resolve to absent. Failed writes are logged and kept in an
// in-process shadow so later reads in this process still observe them.
type boundary struct {
	kv store.KV

	mu     sync.Mutex
	shadow map[string]shadowEntry
}

func newBoundary(kv store.KV) *boundary {
	return &boundary{
		kv:     kv,
		shadow: make(map[string]shadowEntry),
	}
}

func (b *boundary) get(ctx context.Context, key string) ([]byte, bool) {
	b.mu.Lock()
	entry, shadowed := b.shadow[key]
	b.mu.Unlock()

	if shadowed {
		if entry.deleted {
			return nil, false
		}
		return entry.value, true
	}

	value, err := b.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("storage read failed, treating as absent")
		}
		return nil, false
	}

	return value, true
}

func (b *boundary) put(ctx context.Context, key string, value []byte) {
	err := b.kv.Put(ctx, key, value)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("storage write failed, keeping value in memory")
		b.shadow[key] = shadowEntry{value: append([]byte(nil), value...)}
		return
	}

	delete(b.shadow, key)
}

func (b *boundary) del(ctx context.Context, key string) {
	err := b.kv.Delete(ctx, key)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("storage delete failed, keeping removal in memory")
		b.shadow[key] = shadowEntry{deleted: true}
		return
	}

	delete(b.shadow, key)
}
