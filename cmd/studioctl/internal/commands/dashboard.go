package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/dashboard"
)

// DashboardCmd serves the local web dashboard on top of the stored session.
type DashboardCmd struct {
	Listen      string   `help:"Listen address, overrides the config file"`
	CORSOrigins []string `help:"Allowed CORS origins for /api routes" sep:","`
	TrustProxy  bool     `help:"Trust X-Forwarded-For and X-Real-IP" default:"false"`
}

func (c *DashboardCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	listen := e.cfg.Dashboard.Listen
	if c.Listen != "" {
		listen = c.Listen
	}

	origins := e.cfg.Dashboard.CORSOrigins
	if len(c.CORSOrigins) > 0 {
		origins = c.CORSOrigins
	}

	srv, err := dashboard.New(dashboard.Config{
		CORSOrigins:  origins,
		TrustProxy:   c.TrustProxy,
		TenantHeader: e.cfg.Server.TenantHeader,
		Logger:       *zerolog.Ctx(ctx),
	}, e.manager, e.api, e.syncer)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	stopWatch := e.syncer.Watch(ctx)
	defer stopWatch()

	httpServer := configureHTTPServer(listen, srv.Handler())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listen).Str("api", e.api.BaseURL()).Msg("Starting dashboard")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dashboard")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
