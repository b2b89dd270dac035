package credentials

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/store"
)

// TenantSelector holds the active tenant id attached to tenant scoped
// requests. It is persisted independently of the credential store.
//
// The value is read from storage once, on first use, and served from memory
// afterwards; Set writes through.
type TenantSelector struct {
	b *boundary

	mu     sync.RWMutex
	loaded bool
	value  *int64
}

// NewTenantSelector creates a tenant selector on top of kv.
func NewTenantSelector(kv store.KV) *TenantSelector {
	return &TenantSelector{b: newBoundary(kv)}
}

// Get returns the active tenant, nil when none is selected.
func (t *TenantSelector) Get(ctx context.Context) *int64 {
	t.mu.RLock()
	if t.loaded {
		v := t.value
		t.mu.RUnlock()
		return copyID(v)
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		t.value = t.read(ctx)
		t.loaded = true
	}

	return copyID(t.value)
}

// Set changes the active tenant, nil clears it.
func (t *TenantSelector) Set(ctx context.Context, id *int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.value = copyID(id)
	t.loaded = true

	if id == nil {
		t.b.del(ctx, store.KeyActiveTenant)
		return
	}

	t.b.put(ctx, store.KeyActiveTenant, []byte(strconv.FormatInt(*id, 10)))
}

// Reload discards the in-memory value and reads storage again.
func (t *TenantSelector) Reload(ctx context.Context) *int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.value = t.read(ctx)
	t.loaded = true

	return copyID(t.value)
}

func (t *TenantSelector) read(ctx context.Context) *int64 {
	raw, ok := t.b.get(ctx, store.KeyActiveTenant)
	if !ok {
		return nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		log.Warn().Str("value", string(raw)).Msg("stored tenant id is not an integer, ignoring it")
		return nil
	}

	return &id
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
