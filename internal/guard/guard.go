package guard

import (
	"net/url"

	"github.com/wolfeidau/studiodesk/internal/session"
)

const (
	// LoginPath is where unauthenticated visitors are sent.
	LoginPath = "/login"
	// DefaultPath is the landing route for authenticated users.
	DefaultPath = "/"
	// ReturnParam carries the originally requested location through login.
	ReturnParam = "next"
)

// Outcome of evaluating a policy against a session.
type Outcome int

const (
	// Pending means the session is still loading and no decision can be made.
	Pending Outcome = iota
	Allow
	RedirectLogin
	RedirectDefault
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDefault:
		return "redirect_default"
	default:
		return "unknown"
	}
}

// Decision is the result of a policy. Location is set for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Policy decides whether the session may reach the requested location.
type Policy func(snap session.Snapshot, requested string) Decision

// RequireAuth allows authenticated sessions and sends everyone else to the
// login page, keeping requested as the post-login return target.
func RequireAuth(snap session.Snapshot, requested string) Decision {
	if snap.Loading {
		return Decision{Outcome: Pending}
	}

	if snap.IsAuthenticated() {
		return Decision{Outcome: Allow}
	}

	return Decision{Outcome: RedirectLogin, Location: LoginLocation(requested)}
}

// RequireSuperuser allows sessions whose user is a superuser and sends
// everyone else to the default route. A missing user is not a superuser.
func RequireSuperuser(snap session.Snapshot, _ string) Decision {
	if snap.Loading {
		return Decision{Outcome: Pending}
	}

	if snap.IsSuperuser() {
		return Decision{Outcome: Allow}
	}

	return Decision{Outcome: RedirectDefault, Location: DefaultPath}
}

// LoginLocation builds the login URL returning to requested afterwards.
func LoginLocation(requested string) string {
	if requested == "" || requested == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{ReturnParam: {requested}}.Encode()
}

// ReturnTarget extracts a safe post-login location from the query, only
// local absolute paths are accepted.
func ReturnTarget(query url.Values) string {
	next := query.Get(ReturnParam)
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return DefaultPath
	}
	return next
}
