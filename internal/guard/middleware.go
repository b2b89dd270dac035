package guard

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/session"
)

type contextKey string

const snapshotContextKey contextKey = "session_snapshot"

// Snapshotter exposes the current session, satisfied by *session.Manager.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// Middleware evaluates policies in order for every request. The first
// decision that is not Allow is rendered: pending as 503 with Retry-After,
// redirects as 303. Allowed requests carry the evaluated snapshot in their
// context.
func Middleware(src Snapshotter, policies ...Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := src.Snapshot()
			requested := r.URL.RequestURI()

			for _, policy := range policies {
				decision := policy(snap, requested)

				switch decision.Outcome {
				case Allow:
					continue
				case Pending:
					w.Header().Set("Retry-After", "1")
					http.Error(w, "loading", http.StatusServiceUnavailable)
					return
				default:
					log.Debug().
						Str("path", r.URL.Path).
						Str("outcome", decision.Outcome.String()).
						Msg("navigation redirected")

					http.Redirect(w, r, decision.Location, http.StatusSeeOther)
					return
				}
			}

			ctx := context.WithValue(r.Context(), snapshotContextKey, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SnapshotFromContext returns the snapshot a request was allowed with.
// This should be called from handlers protected by Middleware.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey).(session.Snapshot)
	return snap, ok
}
