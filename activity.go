package goKeeper

import (
	"sync/atomic"
	"time"
)

// ActivityTracker records the last qualifying user interaction and exposes an
// idle-timeout signal. It is an independent axis from token expiry: a token
// can be valid while the session is idle, and vice versa.
//
// The timestamp is monotonic: updates that would move it backward are ignored.
type ActivityTracker struct {
	clock Clock
	last  atomic.Int64 // unix nanos
}

// NewActivityTracker describes the newactivitytracker operation and its observable behavior.
//
// NewActivityTracker does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewActivityTracker(clock Clock) *ActivityTracker {
	t := &ActivityTracker{clock: clock}
	t.last.Store(clock.Now().UnixNano())
	return t
}

// RecordActivity marks the current instant as the last user interaction.
// Idempotent within a tick and safe for concurrent use.
func (t *ActivityTracker) RecordActivity() {
	t.RecordActivityAt(t.clock.Now())
}

// RecordActivityAt records an interaction observed at a known instant, for
// activity sources that timestamp their own signals.
func (t *ActivityTracker) RecordActivityAt(at time.Time) {
	next := at.UnixNano()
	for {
		prev := t.last.Load()
		if next <= prev {
			return
		}
		if t.last.CompareAndSwap(prev, next) {
			return
		}
	}
}

// LastActivity describes the lastactivity operation and its observable behavior.
//
// LastActivity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *ActivityTracker) LastActivity() time.Time {
	return time.Unix(0, t.last.Load())
}

// IsIdle reports whether now - lastActivity exceeds the given timeout. A
// non-positive timeout disables idle detection.
func (t *ActivityTracker) IsIdle(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return t.clock.Now().Sub(t.LastActivity()) > timeout
}

// IdleFor returns the elapsed time since the last recorded interaction.
func (t *ActivityTracker) IdleFor() time.Duration {
	d := t.clock.Now().Sub(t.LastActivity())
	if d < 0 {
		return 0
	}
	return d
}
