package session

import (
	"github.com/google/uuid"
	"github.com/wolfeidau/studiodesk/internal/models"
)

// State is the coarse lifecycle state of a session.
type State int

const (
	StateBootstrapping State = iota
	StateLoggedOut
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the session at one point in time.
type Snapshot struct {
	// Token is the bearer credential, empty when logged out.
	Token string
	// User is the cached profile, nil when none is known.
	User *models.Profile
	// ActiveTenant is the tenant attached to tenant scoped requests.
	ActiveTenant *int64
	// Loading is true until the bootstrap read from storage has completed.
	Loading bool
	// Generation changes on every login, logout and invalidation.
	Generation uint64
	// ID correlates log lines for one login, uuid.Nil when logged out.
	ID uuid.UUID
}

// IsAuthenticated reports whether a token is present.
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != ""
}

// IsSuperuser reports whether the cached user is a superuser. A missing user is not.
func (s Snapshot) IsSuperuser() bool {
	return s.User != nil && s.User.IsSuperuser
}

// State returns the lifecycle state the snapshot was taken in.
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return StateBootstrapping
	case s.IsAuthenticated():
		return StateLoggedIn
	default:
		return StateLoggedOut
	}
}

// EventKind identifies the transition that produced an Event.
type EventKind int

const (
	EventBootstrapped EventKind = iota
	EventLoggedIn
	EventLoggedOut
	EventInvalidated
	EventProfileUpdated
	EventTenantChanged
	EventReloaded
)

func (k EventKind) String() string {
	switch k {
	case EventBootstrapped:
		return "bootstrapped"
	case EventLoggedIn:
		return "logged_in"
	case EventLoggedOut:
		return "logged_out"
	case EventInvalidated:
		return "invalidated"
	case EventProfileUpdated:
		return "profile_updated"
	case EventTenantChanged:
		return "tenant_changed"
	case EventReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a transition has been committed.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}
