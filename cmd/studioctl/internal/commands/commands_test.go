package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/studiodesk/internal/auth"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/config"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/session"
	"github.com/wolfeidau/studiodesk/internal/store"
	"github.com/wolfeidau/studiodesk/internal/store/file"
	"github.com/wolfeidau/studiodesk/internal/store/memory"
)

func testGlobals(t *testing.T, server string) *Globals {
	t.Helper()

	dir := t.TempDir()
	return &Globals{
		Config:   filepath.Join(dir, "missing.yaml"),
		Server:   server,
		Store:    config.BackendFile,
		StoreDir: filepath.Join(dir, "state"),
		Version:  "test",
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("flags override the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  url: https://api.example.com\nstore:\n  backend: memory\n"), 0600))

		cfg, err := loadConfig(&Globals{Config: path, Store: config.BackendFile, StoreDir: "/tmp/state"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", cfg.Server.URL)
		assert.Equal(t, config.BackendFile, cfg.Store.Backend)
		assert.Equal(t, "/tmp/state", cfg.Store.Dir)
	})

	t.Run("postgres needs a connection string", func(t *testing.T) {
		g := testGlobals(t, "")
		g.Store = config.BackendPostgres

		_, err := loadConfig(g)
		require.Error(t, err)

		g.PostgresURL = "postgres://localhost/studiodesk"
		cfg, err := loadConfig(g)
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost/studiodesk", cfg.Store.Postgres.ConnString)
	})

	t.Run("rejects unknown backends", func(t *testing.T) {
		g := testGlobals(t, "")
		g.Store = "etcd"

		_, err := loadConfig(g)
		require.Error(t, err)
	})
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	kv, err := openKV(ctx, config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.KV{}, kv)
	require.NoError(t, kv.Close())

	kv, err = openKV(ctx, config.StoreConfig{Backend: config.BackendFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &file.KV{}, kv)
	require.NoError(t, kv.Close())
}

func TestParseHeaders(t *testing.T) {
	header, err := parseHeaders([]string{"Accept: text/csv", "X-Trace:abc"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", header.Get("Accept"))
	assert.Equal(t, "abc", header.Get("X-Trace"))

	_, err = parseHeaders([]string{"nocolon"})
	require.Error(t, err)
}

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/login/access-token":
			token, err := auth.IssueToken("test-key", 1, time.Hour)
			assert.NoError(t, err)
			_ = json.NewEncoder(w).Encode(client.LoginResponse{
				AccessToken: token,
				TokenType:   "bearer",
				User: &models.ProfileHint{
					Email:       models.Ptr("admin@example.com"),
					IsSuperuser: models.Ptr(true),
				},
			})
		case "/api/pms/tenants/":
			_, _ = w.Write([]byte(`[{"id":5,"name":"Harbour Yoga","slug":"harbour"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func snapshot(t *testing.T, globals *Globals) session.Snapshot {
	t.Helper()

	e, err := openEnv(context.Background(), globals)
	require.NoError(t, err)
	defer e.Close()

	return e.manager.Snapshot()
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	srv := fakeAPI(t)
	globals := testGlobals(t, srv.URL)

	login := &LoginCmd{Username: "admin@example.com", Password: "secret"}
	require.NoError(t, login.Run(ctx, globals))

	// a new process sees the persisted session
	snap := snapshot(t, globals)
	require.True(t, snap.IsAuthenticated())
	assert.True(t, snap.IsSuperuser())
	assert.Equal(t, "admin@example.com", snap.User.Email)
	assert.Equal(t, models.Ptr(int64(1)), snap.User.ID)
	assert.Equal(t, models.Ptr(int64(5)), snap.ActiveTenant)

	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	require.NoError(t, (&TenantsSwitchCmd{ID: 9}).Run(ctx, globals))
	assert.Equal(t, models.Ptr(int64(9)), snapshot(t, globals).ActiveTenant)

	require.NoError(t, (&LogoutCmd{}).Run(ctx, globals))

	snap = snapshot(t, globals)
	assert.False(t, snap.IsAuthenticated())
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.ActiveTenant)

	require.ErrorIs(t, (&WhoamiCmd{}).Run(ctx, globals), session.ErrNotLoggedIn)
}

func TestWhoamiCmd_tokenWithoutProfile(t *testing.T) {
	ctx := context.Background()
	globals := testGlobals(t, "")

	kv, err := file.NewKV(globals.StoreDir)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, store.KeyToken, []byte("a.b.c")))
	require.NoError(t, kv.Close())

	snap := snapshot(t, globals)
	require.True(t, snap.IsAuthenticated())
	require.Nil(t, snap.User)

	assert.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
}

func TestAPICmd_failureStatus(t *testing.T) {
	ctx := context.Background()
	srv := fakeAPI(t)
	globals := testGlobals(t, srv.URL)

	require.NoError(t, (&LoginCmd{Username: "admin@example.com", Password: "secret", NoSync: true}).Run(ctx, globals))

	err := (&APICmd{Method: "get", Path: "/api/pms/missing"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	// a 404 leaves the session alone
	assert.True(t, snapshot(t, globals).IsAuthenticated())
}

func TestTokenCmd(t *testing.T) {
	require.Error(t, (&TokenCmd{UserID: 1, TTL: time.Hour}).Run(context.Background()))
	require.NoError(t, (&TokenCmd{UserID: 1, TTL: time.Hour, SigningKey: "k"}).Run(context.Background()))
}
