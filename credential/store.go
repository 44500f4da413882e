package credential

import (
	"context"
	"errors"
)

// ErrUnavailable is an exported constant or variable used by the token lifecycle manager.
var ErrUnavailable = errors.New("credential store unavailable")

// ErrCorruptRecord is an exported constant or variable used by the token lifecycle manager.
var ErrCorruptRecord = errors.New("credential record corrupt")

// Store is the persistence capability consumed by the Manager. Implementations
// must be safe for concurrent use.
//
// Get returns (nil, nil) when no current credential is held. A Store may hand
// back a credential past its expiry; the caller re-checks Expired against its
// own clock. Put replaces the current credential whole.
type Store interface {
	Get(ctx context.Context) (*Credential, error)
	Put(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}
