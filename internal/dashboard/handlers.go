package dashboard

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/guard"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/session"
)

type pageData struct {
	Title        string
	Snapshot     session.Snapshot
	Error        string
	Next         string
	Tenants      []models.Tenant
	Tenant       *models.Tenant
	HasTenant    bool
	ActiveTenant int64
	TenantHeader string
}

func (s *Server) newPage(title string, snap session.Snapshot) pageData {
	page := pageData{
		Title:        title,
		Snapshot:     snap,
		TenantHeader: s.cfg.TenantHeader,
	}
	if snap.ActiveTenant != nil {
		page.HasTenant = true
		page.ActiveTenant = *snap.ActiveTenant
	}
	return page
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, page pageData) {
	tmpl, ok := s.tmpl[name]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("page", name).Msg("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Snapshot()
	next := guard.ReturnTarget(r.URL.Query())

	if snap.IsAuthenticated() {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	page := s.newPage("Sign in", snap)
	page.Next = next
	s.render(w, r, http.StatusOK, "login", page)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	next := guard.ReturnTarget(r.PostForm)
	in := client.LoginRequest{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}

	fail := func(status int, msg string) {
		page := s.newPage("Sign in", s.manager.Snapshot())
		page.Next = next
		page.Error = msg
		s.render(w, r, status, "login", page)
	}

	resp, err := s.api.Login(r.Context(), in)
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.As(err, &apiErr):
			fail(apiErr.StatusCode, apiErr.Message)
		case in.Username == "" || in.Password == "":
			fail(http.StatusBadRequest, "Username and password are required")
		default:
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("login request failed")
			fail(http.StatusBadGateway, "Unable to reach the server")
		}
		return
	}

	if err := s.manager.Login(r.Context(), resp.AccessToken, resp.User); err != nil {
		fail(http.StatusBadGateway, err.Error())
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.manager.Logout(r.Context())
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	page := s.newPage("Dashboard", snap)

	if page.HasTenant {
		tenant, err := s.api.CurrentTenant(r.Context(), page.ActiveTenant)
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			http.Redirect(w, r, guard.LoginLocation(r.URL.RequestURI()), http.StatusSeeOther)
			return
		case err != nil:
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("tenant_id", page.ActiveTenant).Msg("failed to load active tenant")
		default:
			page.Tenant = tenant
		}
	}

	s.render(w, r, http.StatusOK, "home", page)
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	s.render(w, r, http.StatusOK, "settings", s.newPage("Settings", snap))
}

func (s *Server) studios(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.syncer.Sync(r.Context())

	// sync may have picked a tenant, render the latest state
	page := s.newPage("Studios", s.manager.Snapshot())
	page.Tenants = tenants
	if err != nil {
		page.Error = "Unable to load studios: " + err.Error()
	}

	s.render(w, r, http.StatusOK, "studios", page)
}

func (s *Server) switchStudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var tenantID *int64
	if raw := strings.TrimSpace(r.PostForm.Get("tenant_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid tenant_id", http.StatusBadRequest)
			return
		}
		tenantID = &id
	}

	if err := s.manager.SwitchTenant(r.Context(), tenantID); err != nil {
		switch {
		case errors.Is(err, session.ErrNotSuperuser):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, session.ErrNotLoggedIn):
			http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/studios", http.StatusSeeOther)
}

// proxy forwards /api/ requests to the API with the session's bearer token
// and tenant header. Credentials supplied by the browser are dropped.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	header := http.Header{}
	for _, name := range []string{"Accept", "Content-Type"} {
		if v := r.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	var body io.Reader
	if r.ContentLength != 0 {
		body = r.Body
	}

	resp, err := s.api.Raw(r.Context(), r.Method, path, body, header)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("proxy request failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		if hopHeader(k) {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("proxy copy interrupted")
	}
}

func hopHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Keep-Alive", "Transfer-Encoding", "Content-Length", "Upgrade", "Set-Cookie":
		return true
	}
	return false
}
