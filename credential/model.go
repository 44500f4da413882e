package credential

import "time"

// Credential defines a public type used by goKeeper APIs.
//
// Credential instances are immutable values: a refresh or login always installs
// a complete replacement, never a field-level mutation.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SubjectID    string
}

// Expired reports whether the credential is past its expiry at the given instant.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TimeUntilExpiry returns the remaining validity window at the given instant,
// clamped at zero for already-expired credentials.
func (c Credential) TimeUntilExpiry(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// WithinThreshold reports whether the credential is inside the proactive
// refresh window: now >= ExpiresAt - threshold.
func (c Credential) WithinThreshold(now time.Time, threshold time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-threshold))
}

// UserSnapshot defines a public type used by goKeeper APIs.
//
// UserSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UserSnapshot struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Session defines a public type used by goKeeper APIs.
//
// A Session owns exactly one Credential with the same lifetime. LastActivityAt
// is advanced by the activity tracker and never rewinds.
type Session struct {
	User           UserSnapshot
	Credential     Credential
	LastActivityAt time.Time
}
