package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/auth"
	"github.com/wolfeidau/studiodesk/internal/credentials"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrEmptyToken   = errors.New("token must not be empty")
	ErrNotLoggedIn  = errors.New("not logged in")
	ErrNotSuperuser = errors.New("only superusers can switch tenants")
)

// Manager owns the session: the token, the cached profile and the active
// tenant. Every mutation goes through one of its methods, which keep the
// following rules:
//
//   - a regular user bound to a tenant always has that tenant active
//   - no token means no cached profile
//   - a login never inherits the active tenant of the previous session
//   - only superusers change the active tenant explicitly
//
// Transitions are serialised with a mutex; subscribers are notified after the
// lock is released.
type Manager struct {
	creds  *credentials.Store
	tenant *credentials.TenantSelector

	bootOnce sync.Once

	mu      sync.Mutex
	loading bool
	token   string
	user    *models.Profile
	active  *int64
	gen     uint64
	id      uuid.UUID

	listenersMu  sync.Mutex
	listeners    []listener
	nextListener uint64

	metrics *telemetry.Metrics
}

type listener struct {
	id uint64
	fn func(Event)
}

// New creates a manager in the bootstrapping state. Call Bootstrap before use,
// or use Open which does both.
func New(creds *credentials.Store, tenant *credentials.TenantSelector) *Manager {
	return &Manager{
		creds:   creds,
		tenant:  tenant,
		loading: true,
		metrics: telemetry.GetMetrics(),
	}
}

// Open creates a manager and bootstraps it from storage.
func Open(ctx context.Context, creds *credentials.Store, tenant *credentials.TenantSelector) *Manager {
	m := New(creds, tenant)
	m.Bootstrap(ctx)
	return m
}

// Bootstrap reads the persisted session. Only the first call has any effect.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.bootOnce.Do(func() {
		m.mu.Lock()

		m.token = m.creds.Token(ctx)
		m.active = m.tenant.Get(ctx)

		if m.token != "" {
			m.user = m.creds.User(ctx)
			m.id = newSessionID()
			m.reconcileTenant(ctx)
		} else if m.creds.User(ctx) != nil {
			// a profile without a token is left over from an interrupted logout
			m.creds.RemoveUser(ctx)
		}

		m.gen++
		m.loading = false
		snap := m.snapshot()
		m.mu.Unlock()

		log.Debug().
			Bool("authenticated", snap.IsAuthenticated()).
			Str("session", snap.ID.String()).
			Msg("session bootstrapped")

		m.notify(Event{Kind: EventBootstrapped, Snapshot: snap})
	})
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Login establishes a new session for token. The hint carries whatever
// profile fields the backend returned alongside the token and may be nil.
//
// The only error is ErrEmptyToken; storage failures are logged and the
// session continues in memory.
func (m *Manager) Login(ctx context.Context, token string, hint *models.ProfileHint) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.Bootstrap(ctx)

	m.mu.Lock()

	m.setActive(ctx, nil)

	m.creds.SaveToken(ctx, token)
	m.token = token

	m.user = resolveProfile(token, hint, m.user)
	m.creds.SaveUser(ctx, m.user)

	if tenantID, ok := m.user.BoundTenant(); ok {
		m.setActive(ctx, &tenantID)
	}

	m.gen++
	m.id = newSessionID()
	snap := m.snapshot()
	m.mu.Unlock()

	log.Info().
		Str("session", snap.ID.String()).
		Str("token", auth.Fingerprint(token)).
		Bool("superuser", snap.User.IsSuperuser).
		Msg("logged in")

	m.metrics.LoginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("superuser", snap.User.IsSuperuser)))

	m.notify(Event{Kind: EventLoggedIn, Snapshot: snap})

	return nil
}

// Logout ends the session. Calling it while logged out leaves the same state.
func (m *Manager) Logout(ctx context.Context) {
	m.Bootstrap(ctx)

	m.mu.Lock()

	wasLoggedIn := m.token != ""

	m.setActive(ctx, nil)
	m.creds.Clear(ctx)
	m.token = ""
	m.user = nil
	m.id = uuid.Nil
	m.gen++

	snap := m.snapshot()
	m.mu.Unlock()

	if !wasLoggedIn {
		log.Debug().Msg("logout while logged out")
	} else {
		log.Info().Msg("logged out")
		m.metrics.LogoutsTotal.Add(ctx, 1)
	}

	m.notify(Event{Kind: EventLoggedOut, Snapshot: snap})
}

// Invalidate drops the token without a full logout, for example after the
// API rejected it. The cached profile is cleared with it; the active tenant
// is left for the next login to reset.
func (m *Manager) Invalidate(ctx context.Context) {
	m.Bootstrap(ctx)

	m.mu.Lock()

	if m.token == "" {
		m.mu.Unlock()
		return
	}

	m.creds.SaveToken(ctx, "")
	m.token = ""
	m.clearUser(ctx)
	m.id = uuid.Nil
	m.gen++

	snap := m.snapshot()
	m.mu.Unlock()

	log.Warn().Msg("session invalidated")
	m.metrics.InvalidationsTotal.Add(ctx, 1)

	m.notify(Event{Kind: EventInvalidated, Snapshot: snap})
}

// Reload re-reads the persisted session, picking up changes made by another
// process sharing the same storage. A token that disappeared clears the
// cached profile as well.
func (m *Manager) Reload(ctx context.Context) Snapshot {
	m.Bootstrap(ctx)

	m.mu.Lock()

	token := m.creds.Token(ctx)
	m.active = m.tenant.Reload(ctx)

	switch {
	case token == "":
		if m.token != "" {
			m.gen++
			m.id = uuid.Nil
		}
		m.token = ""
		m.clearUser(ctx)
	case token != m.token:
		m.token = token
		m.user = m.creds.User(ctx)
		m.gen++
		m.id = newSessionID()
	default:
		m.user = m.creds.User(ctx)
	}

	if m.token != "" {
		m.reconcileTenant(ctx)
	}

	snap := m.snapshot()
	m.mu.Unlock()

	log.Debug().
		Bool("authenticated", snap.IsAuthenticated()).
		Uint64("generation", snap.Generation).
		Msg("session reloaded")

	m.notify(Event{Kind: EventReloaded, Snapshot: snap})

	return snap
}

// UpdateProfile replaces the cached profile mid-session, for example after
// refreshing it from the API. When the tenant binding or superuser flag
// changed, the active tenant is reconciled.
func (m *Manager) UpdateProfile(ctx context.Context, profile models.Profile) error {
	m.Bootstrap(ctx)

	m.mu.Lock()

	if m.token == "" {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}

	prev := m.user
	m.user = profile.Clone()
	m.creds.SaveUser(ctx, m.user)

	if prev == nil || prev.IsSuperuser != m.user.IsSuperuser || !models.Equal(prev.TenantID, m.user.TenantID) {
		m.reconcileTenant(ctx)
	}

	snap := m.snapshot()
	m.mu.Unlock()

	m.notify(Event{Kind: EventProfileUpdated, Snapshot: snap})

	return nil
}

// SwitchTenant changes the active tenant. Only superusers may do this; nil
// clears the selection.
func (m *Manager) SwitchTenant(ctx context.Context, tenantID *int64) error {
	m.Bootstrap(ctx)

	m.mu.Lock()

	if m.token == "" {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}

	if m.user == nil || !m.user.IsSuperuser {
		m.mu.Unlock()
		return ErrNotSuperuser
	}

	m.setActive(ctx, tenantID)
	snap := m.snapshot()
	m.mu.Unlock()

	log.Info().Str("session", snap.ID.String()).Interface("tenant", tenantID).Msg("switched tenant")
	m.metrics.TenantSwitchesTotal.Add(ctx, 1)

	m.notify(Event{Kind: EventTenantChanged, Snapshot: snap})

	return nil
}

// ApplyTenantList auto-selects the first listed tenant when none is active or
// the active tenant is not in the list. gen is the generation captured before
// the list was requested; if the session moved on since, nothing changes.
//
// It returns the selected tenant and whether a change was made.
func (m *Manager) ApplyTenantList(ctx context.Context, gen uint64, ids []int64) (*int64, bool) {
	m.mu.Lock()

	if gen != m.gen || m.token == "" || m.user == nil || !m.user.IsSuperuser {
		m.mu.Unlock()
		log.Debug().Uint64("generation", gen).Msg("discarding stale tenant list")
		return nil, false
	}

	if len(ids) == 0 || (m.active != nil && slices.Contains(ids, *m.active)) {
		active := copyID(m.active)
		m.mu.Unlock()
		return active, false
	}

	selected := ids[0]
	m.setActive(ctx, &selected)
	snap := m.snapshot()
	m.mu.Unlock()

	log.Info().Str("session", snap.ID.String()).Int64("tenant", selected).Msg("auto selected tenant")
	m.metrics.TenantAutoSelectionsTotal.Add(ctx, 1)

	m.notify(Event{Kind: EventTenantChanged, Snapshot: snap})

	return &selected, true
}

// Subscribe registers fn to be called after every committed transition.
// Calling the returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listener{id: id, fn: fn})

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()

		m.listeners = slices.DeleteFunc(m.listeners, func(l listener) bool {
			return l.id == id
		})
	}
}

func (m *Manager) notify(ev Event) {
	m.listenersMu.Lock()
	listeners := slices.Clone(m.listeners)
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}

// must hold m.mu
func (m *Manager) snapshot() Snapshot {
	return Snapshot{
		Token:        m.token,
		User:         m.user.Clone(),
		ActiveTenant: copyID(m.active),
		Loading:      m.loading,
		Generation:   m.gen,
		ID:           m.id,
	}
}

// must hold m.mu
func (m *Manager) setActive(ctx context.Context, tenantID *int64) {
	m.active = copyID(tenantID)
	m.tenant.Set(ctx, tenantID)
}

// must hold m.mu
func (m *Manager) clearUser(ctx context.Context) {
	m.user = nil
	m.creds.RemoveUser(ctx)
}

// must hold m.mu
func (m *Manager) reconcileTenant(ctx context.Context) {
	tenantID, ok := m.user.BoundTenant()
	if !ok {
		return
	}

	if m.active != nil && *m.active == tenantID {
		return
	}

	log.Debug().Int64("tenant", tenantID).Msg("binding active tenant to user tenant")
	m.setActive(ctx, &tenantID)
}

// resolveProfile merges the login hint, the previously cached profile and
// the token subject field by field. The superuser flag only ever comes from
// the hint.
func resolveProfile(token string, hint *models.ProfileHint, prev *models.Profile) *models.Profile {
	if hint == nil {
		hint = &models.ProfileHint{}
	}
	if prev == nil {
		prev = &models.Profile{}
	}

	profile := &models.Profile{
		ID:       firstSet(hint.ID, prev.ID),
		FullName: firstSet(hint.FullName, prev.FullName),
		TenantID: firstSet(hint.TenantID, prev.TenantID),
	}

	if profile.ID == nil {
		if sub, ok := auth.DecodeSubject(token); ok {
			profile.ID = &sub
		}
	}

	switch {
	case hint.Email != nil && *hint.Email != "":
		profile.Email = *hint.Email
	default:
		profile.Email = prev.Email
	}

	if hint.IsSuperuser != nil {
		profile.IsSuperuser = *hint.IsSuperuser
	}

	return profile
}

func firstSet[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			c := *v
			return &c
		}
	}
	return nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func newSessionID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
