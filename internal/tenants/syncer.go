package tenants

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/session"
	"github.com/wolfeidau/studiodesk/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/wolfeidau/studiodesk/internal/tenants"

// Lister fetches every tenant visible to the current identity.
type Lister interface {
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

// Syncer lists tenants for superusers and lets the session pick one when no
// valid tenant is active.
type Syncer struct {
	manager *session.Manager
	lister  Lister

	maxTries        uint
	initialInterval time.Duration

	metrics *telemetry.Metrics
}

type Option func(*Syncer)

// WithMaxTries bounds the number of list attempts, 3 by default.
func WithMaxTries(n uint) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.maxTries = n
		}
	}
}

// WithInitialInterval sets the delay before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(s *Syncer) {
		s.initialInterval = d
	}
}

func NewSyncer(manager *session.Manager, lister Lister, opts ...Option) *Syncer {
	s := &Syncer{
		manager:         manager,
		lister:          lister,
		maxTries:        3,
		initialInterval: 250 * time.Millisecond,
		metrics:         telemetry.GetMetrics(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sync fetches the tenant list and applies auto-selection.
//
// Regular users get session.ErrNotSuperuser without any call to the API. When
// listing fails the error is returned with an empty list and the active
// tenant is left alone. A list that arrives after the session changed is
// returned but not applied.
func (s *Syncer) Sync(ctx context.Context) ([]models.Tenant, error) {
	snap := s.manager.Snapshot()
	if !snap.IsAuthenticated() {
		return []models.Tenant{}, session.ErrNotLoggedIn
	}
	if !snap.IsSuperuser() {
		return []models.Tenant{}, session.ErrNotSuperuser
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "tenants.Sync")
	defer span.End()

	started := time.Now()
	tenants, err := s.list(ctx)
	s.metrics.TenantListDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tenant list failed")
		s.metrics.TenantListFailuresTotal.Add(ctx, 1)

		log.Warn().Err(err).Str("session", snap.ID.String()).Msg("failed to list tenants")

		return []models.Tenant{}, err
	}

	ids := make([]int64, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}

	selected, changed := s.manager.ApplyTenantList(ctx, snap.Generation, ids)

	span.SetAttributes(
		attribute.Int("tenants.count", len(tenants)),
		attribute.Bool("tenants.auto_selected", changed),
	)

	log.Debug().
		Int("count", len(tenants)).
		Bool("changed", changed).
		Interface("active", selected).
		Msg("tenant list synced")

	return tenants, nil
}

func (s *Syncer) list(ctx context.Context) ([]models.Tenant, error) {
	op := func() ([]models.Tenant, error) {
		tenants, err := s.lister.ListTenants(ctx)
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return tenants, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Dur("next", next).Msg("retrying tenant list")
		}),
	)
}

// retryable reports whether a failed list is worth repeating. Client errors
// other than rate limiting are final.
func retryable(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
}

// Watch syncs whenever a superuser session starts or the profile changes,
// and once immediately if a superuser is already logged in. Syncs run in the
// background; the returned function stops watching and waits for them.
func (s *Syncer) Watch(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Sync(ctx)
		}()
	}

	var mu sync.Mutex
	stopped := false

	unsubscribe := s.manager.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventLoggedIn, session.EventProfileUpdated, session.EventReloaded:
		default:
			return
		}

		if !ev.Snapshot.IsSuperuser() {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			trigger()
		}
	})

	if snap := s.manager.Snapshot(); snap.IsAuthenticated() && snap.IsSuperuser() {
		mu.Lock()
		trigger()
		mu.Unlock()
	}

	return func() {
		unsubscribe()

		mu.Lock()
		stopped = true
		mu.Unlock()

		cancel()
		wg.Wait()
	}
}
