package dashboard

import (
	"context"
	"embed"
	"html/template"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/studiodesk/internal/auth"
	"github.com/wolfeidau/studiodesk/internal/client"
	"github.com/wolfeidau/studiodesk/internal/guard"
	httpmiddleware "github.com/wolfeidau/studiodesk/internal/http"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login", "home", "settings", "studios"}

// API is the subset of the studio API the dashboard calls.
type API interface {
	Login(ctx context.Context, in client.LoginRequest) (*client.LoginResponse, error)
	CurrentTenant(ctx context.Context, tenantID int64) (*models.Tenant, error)
	Raw(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error)
}

// TenantSyncer lists tenants and applies auto-selection.
type TenantSyncer interface {
	Sync(ctx context.Context) ([]models.Tenant, error)
}

type Config struct {
	CORSOrigins  []string
	TrustProxy   bool
	TenantHeader string
	Logger       zerolog.Logger
}

// Server is the local dashboard. It serves HTML pages for the session held
// by manager and proxies /api/ requests through the bound API client.
type Server struct {
	cfg     Config
	manager *session.Manager
	api     API
	syncer  TenantSyncer
	tmpl    map[string]*template.Template
	csrf    *csrf.Protection
}

func New(cfg Config, manager *session.Manager, api API, syncer TenantSyncer) (*Server, error) {
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = client.DefaultTenantHeader
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	// origins allowed to read /api/ responses may also write through it
	protection := csrf.New()
	for _, origin := range cfg.CORSOrigins {
		if strings.Contains(origin, "*") {
			cfg.Logger.Warn().Str("origin", origin).Msg("wildcard cors origin is not trusted for unsafe methods")
			continue
		}
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid cors origin: %w", err)
		}
	}

	return &Server{
		cfg:     cfg,
		manager: manager,
		api:     api,
		syncer:  syncer,
		tmpl:    tmpl,
		csrf:    protection,
	}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"fingerprint": auth.Fingerprint,
	}

	base, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}

	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if out[page], err = clone.ParseFS(templateFS, "templates/"+page+".html"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Handler returns the dashboard's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.AccessLog(s.cfg.Logger))
	r.Use(httpmiddleware.ClientIPMiddleware(s.cfg.TrustProxy))
	r.Use(httpmiddleware.RequestIDMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Post("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(s.manager, guard.RequireAuth))

		r.Get("/", s.home)
		r.Get("/settings", s.settings)
		r.Handle("/api/*", http.HandlerFunc(s.proxy))

		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware(s.manager, guard.RequireSuperuser))

			r.Get("/studios", s.studios)
			r.Post("/studios/switch", s.switchStudio)
		})
	})

	// the proxy attaches the session token, so /api/ gets the cross-origin
	// check as well as CORS
	html := s.csrf.Handler(r)
	api := s.withCORS(html)

	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if isAPIRoute(req.URL.Path) {
			api.ServeHTTP(w, req)
			return
		}
		html.ServeHTTP(w, req)
	})

	return otelhttp.NewHandler(gzhttp.GzipHandler(handler), "dashboard")
}

func (s *Server) withCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(h)
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
