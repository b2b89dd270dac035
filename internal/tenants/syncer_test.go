package tenants

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/credentials"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/session"
	"github.com/wolfeidau/studiodesk/internal/store/memory"
)

type fakeLister struct {
	calls   atomic.Int32
	tenants []models.Tenant
	errs    []error

	// before runs inside ListTenants, ahead of the response.
	before func()
}

func (f *fakeLister) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	n := int(f.calls.Add(1))
	if f.before != nil {
		f.before()
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	return f.tenants, nil
}

func tenantList(ids ...int64) []models.Tenant {
	tenants := make([]models.Tenant, 0, len(ids))
	for _, id := range ids {
		tenants = append(tenants, models.Tenant{ID: id, Name: "studio", Slug: "studio"})
	}
	return tenants
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()

	kv := memory.NewKV()
	return session.Open(context.Background(), credentials.NewStore(kv), credentials.NewTenantSelector(kv))
}

var superuser = &models.ProfileHint{IsSuperuser: models.Ptr(true)}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("superuser auto selects the first tenant", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		lister := &fakeLister{tenants: tenantList(3, 8)}
		tenants, err := NewSyncer(manager, lister).Sync(ctx)
		require.NoError(t, err)

		assert.Len(t, tenants, 2)
		assert.Equal(t, models.Ptr(int64(3)), manager.Snapshot().ActiveTenant)
	})

	t.Run("regular users never call the api", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", &models.ProfileHint{TenantID: models.Ptr(int64(7))}))

		lister := &fakeLister{tenants: tenantList(3)}
		tenants, err := NewSyncer(manager, lister).Sync(ctx)

		assert.ErrorIs(t, err, session.ErrNotSuperuser)
		assert.Empty(t, tenants)
		assert.Equal(t, int32(0), lister.calls.Load())
		assert.Equal(t, models.Ptr(int64(7)), manager.Snapshot().ActiveTenant)
	})

	t.Run("logged out sessions never call the api", func(t *testing.T) {
		lister := &fakeLister{tenants: tenantList(3)}
		_, err := NewSyncer(newManager(t), lister).Sync(ctx)

		assert.ErrorIs(t, err, session.ErrNotLoggedIn)
		assert.Equal(t, int32(0), lister.calls.Load())
	})

	t.Run("failure yields an empty list", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		boom := errors.New("connection refused")
		lister := &fakeLister{errs: []error{boom, boom}}
		tenants, err := NewSyncer(manager, lister, WithMaxTries(2), WithInitialInterval(time.Millisecond)).Sync(ctx)

		assert.ErrorIs(t, err, boom)
		assert.NotNil(t, tenants)
		assert.Empty(t, tenants)
		assert.Equal(t, int32(2), lister.calls.Load())
		assert.Nil(t, manager.Snapshot().ActiveTenant)
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		lister := &fakeLister{
			tenants: tenantList(5),
			errs:    []error{&client.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}},
		}
		_, err := NewSyncer(manager, lister, WithInitialInterval(time.Millisecond)).Sync(ctx)
		require.NoError(t, err)

		assert.Equal(t, int32(2), lister.calls.Load())
		assert.Equal(t, models.Ptr(int64(5)), manager.Snapshot().ActiveTenant)
	})

	t.Run("forbidden is not retried", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		lister := &fakeLister{errs: []error{&client.APIError{StatusCode: http.StatusForbidden, Message: "nope"}}}
		_, err := NewSyncer(manager, lister, WithInitialInterval(time.Millisecond)).Sync(ctx)

		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, int32(1), lister.calls.Load())
	})

	t.Run("list arriving after logout is not applied", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		lister := &fakeLister{tenants: tenantList(3, 8)}
		lister.before = func() { manager.Logout(ctx) }

		_, err := NewSyncer(manager, lister).Sync(ctx)
		require.NoError(t, err)

		assert.Nil(t, manager.Snapshot().ActiveTenant)
	})

	t.Run("list arriving after another login is not applied", func(t *testing.T) {
		manager := newManager(t)
		require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

		lister := &fakeLister{tenants: tenantList(3, 8)}
		lister.before = func() {
			lister.before = nil
			assert.NoError(t, manager.Login(ctx, "d.e.f", superuser))
		}

		_, err := NewSyncer(manager, lister).Sync(ctx)
		require.NoError(t, err)

		assert.Nil(t, manager.Snapshot().ActiveTenant)
	})
}

func TestWatch(t *testing.T) {
	ctx := context.Background()

	manager := newManager(t)

	var mu sync.Mutex
	selected := make(chan int64, 4)
	manager.Subscribe(func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Kind == session.EventTenantChanged && ev.Snapshot.ActiveTenant != nil {
			selected <- *ev.Snapshot.ActiveTenant
		}
	})

	lister := &fakeLister{tenants: tenantList(3, 8)}
	stop := NewSyncer(manager, lister).Watch(ctx)
	defer stop()

	require.NoError(t, manager.Login(ctx, "a.b.c", &models.ProfileHint{TenantID: models.Ptr(int64(7))}))
	require.NoError(t, manager.Login(ctx, "a.b.c", superuser))

	select {
	case id := <-selected:
		assert.Equal(t, int64(3), id)
	case <-time.After(5 * time.Second):
		t.Fatal("tenant was not auto selected")
	}

	stop()
	assert.Equal(t, int32(1), lister.calls.Load(), "only the superuser login triggers a sync")
}
