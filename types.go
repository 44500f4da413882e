package goKeeper

import (
	"context"
	"time"

	"github.com/MrEthical07/goKeeper/credential"
)

// Credential is the access/refresh token pair plus expiry and subject identity.
// See [credential.Credential].
type Credential = credential.Credential

// UserSnapshot is the immutable subject snapshot owned by a [Session].
type UserSnapshot = credential.UserSnapshot

// Session pairs a subject snapshot with its Credential and last-activity time.
type Session = credential.Session

// CredentialStore is the injected persistence capability. See [credential.Store].
type CredentialStore = credential.Store

// RefreshExecutor performs one network round-trip exchanging a refresh token
// for a new credential. Implementations signal a permanently rejected refresh
// token by returning an error wrapping [ErrRefreshRejected]; every other error
// is treated as transient and retried per the backoff policy.
//
// Exchange calls need not be cancelable: a call completing after Logout is
// discarded by the Manager's generation check and must not corrupt state.
type RefreshExecutor interface {
	Exchange(ctx context.Context, refreshToken string) (Credential, error)
}

// State defines a public type used by goKeeper APIs.
//
// State instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type State uint8

const (
	// StateUnauthenticated is an exported constant or variable used by the token lifecycle manager.
	StateUnauthenticated State = iota
	// StateAuthenticated is an exported constant or variable used by the token lifecycle manager.
	StateAuthenticated
	// StateRefreshing is an exported constant or variable used by the token lifecycle manager.
	StateRefreshing
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// EventKind defines a public type used by goKeeper APIs.
//
// EventKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventKind uint8

const (
	// EventCreated is an exported constant or variable used by the token lifecycle manager.
	EventCreated EventKind = iota
	// EventRefreshed is an exported constant or variable used by the token lifecycle manager.
	EventRefreshed
	// EventExpired is an exported constant or variable used by the token lifecycle manager.
	EventExpired
	// EventCleared is an exported constant or variable used by the token lifecycle manager.
	EventCleared
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventRefreshed:
		return "refreshed"
	case EventExpired:
		return "expired"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event defines a public type used by goKeeper APIs.
//
// Credential is a snapshot of the credential installed by the transition, or
// nil for EventExpired and EventCleared.
type Event struct {
	Kind       EventKind
	Credential *Credential
	At         time.Time
}

// Listener receives state transition events. Listener panics are recovered and
// logged; they never propagate to other listeners or to Manager callers.
type Listener func(Event)

// AuthState defines a public type used by goKeeper APIs.
//
// Token validity and session idleness are independent axes; consumers that
// gate UI access must check both.
type AuthState struct {
	State State
	Idle  bool
}
