package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wolfeidau/studiodesk/internal/logger"
	"github.com/wolfeidau/studiodesk/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTenantHeader = "X-Tenant-ID"
	RequestIDHeader     = "X-Request-ID"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds common client configuration
type Config struct {
	ServerURL    string `validate:"required,http_url"`
	Timeout      time.Duration
	TenantHeader string `validate:"required"`

	// InvalidateOnUnauthorized drops the session when the API answers 401.
	InvalidateOnUnauthorized bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:                "http://127.0.0.1:8002",
		Timeout:                  30 * time.Second,
		TenantHeader:             DefaultTenantHeader,
		InvalidateOnUnauthorized: true,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

// NewHTTPClient builds an HTTP client whose requests are bound to the session
// held by manager. The returned binder must be closed when the client is no
// longer used.
func NewHTTPClient(cfg Config, manager *session.Manager) (*http.Client, *Binder) {
	var base http.RoundTripper = logger.NewTransport(http.DefaultTransport)
	base = otelhttp.NewTransport(base)

	opts := []BinderOption{
		WithBase(base),
		WithOrigin(cfg.ServerURL),
		WithTenantHeader(cfg.TenantHeader),
	}
	if cfg.InvalidateOnUnauthorized {
		opts = append(opts, WithInvalidateOnUnauthorized())
	}

	binder := NewBinder(manager, opts...)

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: binder,
	}, binder
}
