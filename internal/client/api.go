package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/models"
)

const (
	loginPath         = "/login/access-token"
	tenantsPath       = "/api/pms/tenants/"
	currentTenantPath = "/api/pms/tenants/me"
)

// LoginRequest holds the credentials posted to the login endpoint.
type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// LoginResponse is returned by the login endpoint. User is only present when
// the API chooses to include the profile.
type LoginResponse struct {
	AccessToken string              `json:"access_token" validate:"required"`
	TokenType   string              `json:"token_type"`
	User        *models.ProfileHint `json:"user,omitempty"`
}

// API calls the studio management API over an HTTP client, normally one built
// by NewHTTPClient so requests carry the session.
type API struct {
	baseURL      string
	httpClient   *http.Client
	tenantHeader string
}

// NewAPI creates an API client for cfg.ServerURL.
func NewAPI(cfg Config, httpClient *http.Client) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &API{
		baseURL:      strings.TrimRight(cfg.ServerURL, "/"),
		httpClient:   httpClient,
		tenantHeader: cfg.TenantHeader,
	}, nil
}

// BaseURL returns the API root.
func (a *API) BaseURL() string {
	return a.baseURL
}

// Login exchanges a username and password for a token. It does not touch the
// session; callers pass the result to session.Manager.Login on success.
func (a *API) Login(ctx context.Context, in LoginRequest) (*LoginResponse, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid login request: %w", err)
	}

	form := url.Values{}
	form.Set("username", in.Username)
	form.Set("password", in.Password)

	ctx = withoutInvalidation(WithoutTenant(ctx))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out LoginResponse
	if err := a.send(req, &out); err != nil {
		return nil, err
	}

	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("login response has no access token: %w", err)
	}

	log.Debug().Str("user", in.Username).Bool("profile", out.User != nil).Msg("login accepted")

	return &out, nil
}

// ListTenants returns every tenant visible to a superuser. The request is
// sent without a tenant header.
func (a *API) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := a.Do(WithoutTenant(ctx), http.MethodGet, tenantsPath, nil, &tenants); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// CurrentTenant returns the tenant identified by tenantID, sent as an
// explicit tenant header.
func (a *API) CurrentTenant(ctx context.Context, tenantID int64) (*models.Tenant, error) {
	req, err := a.newRequest(ctx, http.MethodGet, currentTenantPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(a.tenantHeader, strconv.FormatInt(tenantID, 10))

	var tenant models.Tenant
	if err := a.send(req, &tenant); err != nil {
		return nil, fmt.Errorf("failed to get current tenant: %w", err)
	}

	return &tenant, nil
}

// Do sends a JSON request to path and decodes the JSON response into out,
// which may be nil. Non 2xx responses return an *APIError.
func (a *API) Do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return a.send(req, out)
}

// Raw sends a request and returns the response as is, the caller closes the
// body. A tenant header in header is dropped so the request is scoped to the
// session's active tenant, use session.Manager.SwitchTenant to change it.
func (a *API) Raw(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range header {
		if strings.EqualFold(k, a.tenantHeader) {
			log.Debug().Str("header", k).Msg("dropping caller supplied tenant header")
			continue
		}
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

func (a *API) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, AbsoluteURL(a.baseURL, path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (a *API) send(req *http.Request, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
