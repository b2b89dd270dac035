package client

import (
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/session"
	"golang.org/x/oauth2"
)

// Binder is an http.RoundTripper that scopes every request to the current
// session: the bearer token and the active tenant.
//
// It is the only place the Authorization header is set; any value supplied
// by the caller is replaced. With an origin configured, requests to any other
// scheme or host, redirects included, go out without credentials.
type Binder struct {
	base         http.RoundTripper
	manager      *session.Manager
	tenantHeader string
	invalidate   bool
	origin       *url.URL

	mu     sync.RWMutex
	token  *oauth2.Token
	tenant *int64

	unsubscribe func()
}

type BinderOption func(*Binder)

// WithBase sets the transport requests are sent with, http.DefaultTransport
// by default.
func WithBase(rt http.RoundTripper) BinderOption {
	return func(b *Binder) {
		b.base = rt
	}
}

// WithTenantHeader changes the name of the tenant header.
func WithTenantHeader(name string) BinderOption {
	return func(b *Binder) {
		if name != "" {
			b.tenantHeader = textproto.CanonicalMIMEHeaderKey(name)
		}
	}
}

// WithInvalidateOnUnauthorized invalidates the session when a request sent
// with the current token is answered with 401.
func WithInvalidateOnUnauthorized() BinderOption {
	return func(b *Binder) {
		b.invalidate = true
	}
}

// WithOrigin limits the session headers to requests for the scheme and host
// of serverURL. An unparsable serverURL matches no request.
func WithOrigin(serverURL string) BinderOption {
	return func(b *Binder) {
		u, err := url.Parse(serverURL)
		if err != nil || u.Host == "" {
			b.origin = &url.URL{}
			return
		}
		b.origin = &url.URL{Scheme: strings.ToLower(u.Scheme), Host: canonicalHost(u)}
	}
}

// NewBinder creates a binder tracking manager.
func NewBinder(manager *session.Manager, opts ...BinderOption) *Binder {
	b := &Binder{
		base:         http.DefaultTransport,
		manager:      manager,
		tenantHeader: DefaultTenantHeader,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.refresh()
	b.unsubscribe = manager.Subscribe(func(session.Event) {
		b.refresh()
	})

	return b
}

// Close stops tracking the session.
func (b *Binder) Close() {
	b.unsubscribe()
}

// TenantHeader returns the name of the header carrying the tenant id.
func (b *Binder) TenantHeader() string {
	return b.tenantHeader
}

// refresh copies the latest session state into the default headers. The
// snapshot is read under b.mu so the last refresh to commit always holds the
// newest state, whatever order events arrive in.
func (b *Binder) refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.manager.Snapshot()

	if snap.Token == "" {
		b.token = nil
	} else {
		b.token = &oauth2.Token{AccessToken: snap.Token, TokenType: "Bearer"}
	}

	b.tenant = snap.ActiveTenant
}

// RoundTrip implements http.RoundTripper.
func (b *Binder) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	b.mu.RLock()
	token := b.token
	tenant := b.tenant
	b.mu.RUnlock()

	r := req.Clone(ctx)
	r.Header.Del("Authorization")

	if !b.sameOrigin(r.URL) {
		r.Header.Del(b.tenantHeader)
		log.Debug().Str("host", r.URL.Host).Msg("request outside the api origin sent without credentials")
		return b.base.RoundTrip(r)
	}

	if token != nil {
		token.SetAuthHeader(r)
	}

	if r.Header.Get(b.tenantHeader) == "" && tenant != nil && !isWithoutTenant(ctx) {
		r.Header.Set(b.tenantHeader, strconv.FormatInt(*tenant, 10))
	}

	if r.Header.Get(RequestIDHeader) == "" {
		if id, err := uuid.NewV7(); err == nil {
			r.Header.Set(RequestIDHeader, id.String())
		}
	}

	resp, err := b.base.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && b.invalidate && token != nil && !isWithoutInvalidation(ctx) {
		b.invalidateIfCurrent(req, token.AccessToken)
	}

	return resp, nil
}

func (b *Binder) sameOrigin(u *url.URL) bool {
	if b.origin == nil {
		return true
	}
	return b.origin.Host != "" &&
		strings.EqualFold(u.Scheme, b.origin.Scheme) &&
		canonicalHost(u) == b.origin.Host
}

// canonicalHost lowercases the host and fills in the default port for the
// scheme so http://api and http://api:80 compare equal.
func canonicalHost(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}

func (b *Binder) invalidateIfCurrent(req *http.Request, sent string) {
	if b.manager.Snapshot().Token != sent {
		return
	}

	log.Warn().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("api rejected the session token")

	b.manager.Invalidate(req.Context())
}
