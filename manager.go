package goKeeper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/goKeeper/credential"
)

// Manager defines a public type used by goKeeper APIs.
//
// Manager owns the authentication state machine: it decides when to refresh,
// deduplicates concurrent refresh calls, applies retry with backoff, updates
// the credential store, and re-schedules the proactive refresh timer. All
// mutable state is guarded by one mutex; consumers receive immutable
// credential snapshots and only the Manager installs new ones.
type Manager struct {
	config   Config
	store    credential.Store
	executor RefreshExecutor
	clock    Clock
	events   *eventDispatcher
	metrics  *Metrics
	activity *ActivityTracker

	done chan struct{}

	mu         sync.Mutex
	state      State
	current    *Credential
	user       *UserSnapshot
	inflight   *refreshCall
	generation uint64
	timer      Timer
	degraded   bool
	restored   bool
	closed     bool
}

// Close stops the proactive refresh timer, resolves in-flight refresh waiters
// with ErrManagerClosed, and drains then stops the event dispatcher. Close is
// idempotent and safe to call concurrently.
func (m *Manager) Close() {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelTimerLocked()
	call := m.inflight
	m.inflight = nil
	close(m.done)
	m.mu.Unlock()

	if call != nil {
		call.resolve(Credential{}, ErrManagerClosed)
	}
	m.events.Close()
}

// SetCredential installs the credential obtained from a successful primary
// authentication. It validates the credential shape, persists it, schedules
// the proactive refresh timer at ExpiresAt - Threshold, and notifies
// subscribers with EventCreated. Any in-flight refresh is superseded.
//
// SetCredential may return an error when input validation, dependency calls, or security checks fail.
// SetCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) SetCredential(ctx context.Context, cred Credential) error {
	if m == nil {
		return ErrManagerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.validateCredential(cred); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.generation++
	m.restored = true
	call := m.inflight
	m.inflight = nil
	m.installLocked(ctx, cred, EventCreated)
	m.mu.Unlock()

	// A fresh login wins over whatever the superseded refresh returns.
	if call != nil {
		call.resolve(cred, nil)
	}

	return nil
}

// SetUser attaches the subject snapshot carried by [Manager.SessionSnapshot].
//
// SetUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) SetUser(user UserSnapshot) {
	if m == nil {
		return
	}
	m.mu.Lock()
	next := user
	m.user = &next
	m.mu.Unlock()
}

// Current returns an immutable snapshot of the current credential, or nil
// when unauthenticated. Pure read, no side effects.
//
// Current does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Current() *Credential {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	out := *m.current
	return &out
}

// EnsureValid returns a credential fit for immediate use. If the held
// credential is outside the refresh threshold it is returned as is, with zero
// executor calls. If it is near expiry or expired, a refresh is triggered and
// awaited; concurrent callers share the same pending result.
//
// EnsureValid may return an error when input validation, dependency calls, or security checks fail.
// EnsureValid does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) EnsureValid(ctx context.Context) (Credential, error) {
	if m == nil {
		return Credential{}, ErrManagerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Credential{}, ErrManagerClosed
	}
	m.restoreLocked(ctx)
	if m.current == nil {
		m.mu.Unlock()
		return Credential{}, ErrNotAuthenticated
	}
	if !m.current.WithinThreshold(m.clock.Now(), m.config.Refresh.Threshold) {
		cred := *m.current
		m.mu.Unlock()
		return cred, nil
	}
	call := m.refreshLocked()
	m.mu.Unlock()

	return call.wait(ctx)
}

// Refresh forces a refresh round-trip (singleflight). If one is already in
// flight the caller joins it instead of starting a second network call. The
// result resolves within MaxRetries bounded-backoff attempts; it never hangs.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Refresh(ctx context.Context) (Credential, error) {
	if m == nil {
		return Credential{}, ErrManagerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Credential{}, ErrManagerClosed
	}
	m.restoreLocked(ctx)
	if m.current == nil {
		m.mu.Unlock()
		return Credential{}, ErrNotAuthenticated
	}
	call := m.refreshLocked()
	m.mu.Unlock()

	return call.wait(ctx)
}

// Logout clears the credential store and session, cancels the scheduled
// refresh timer, discards any in-flight refresh result, notifies subscribers
// with EventCleared, and transitions to Unauthenticated. The in-flight network
// call is not aborted; its late result fails the generation check and is
// discarded.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Logout(ctx context.Context) error {
	if m == nil {
		return ErrManagerClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	// A persisted credential from a previous process must not outlive this
	// logout, so resolve the store slot before deciding whether a session
	// exists.
	m.restoreLocked(ctx)
	m.generation++
	call := m.inflight
	m.inflight = nil
	if m.current != nil || call != nil {
		m.teardownLocked(ctx, EventCleared)
		m.metricInc(MetricLogout)
	} else {
		m.state = StateUnauthenticated
		if err := m.store.Clear(ctx); err != nil {
			m.degradeLocked("clear", err)
		}
	}
	m.mu.Unlock()

	if call != nil {
		call.resolve(Credential{}, ErrNotAuthenticated)
	}

	return nil
}

// OnStateChange registers a listener for state transition events and returns
// its unsubscribe function. Events are delivered in transition order by a
// single dispatcher goroutine.
//
// OnStateChange does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) OnStateChange(fn Listener) func() {
	if m == nil {
		return func() {}
	}
	return m.events.subscribe(fn)
}

// State describes the state operation and its observable behavior.
//
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) State() State {
	if m == nil {
		return StateUnauthenticated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AuthState reports the token axis and the idle axis together. A valid token
// with an idle session still requires re-engagement by the host application.
//
// AuthState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AuthState() AuthState {
	if m == nil {
		return AuthState{State: StateUnauthenticated}
	}
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	return AuthState{
		State: state,
		Idle:  m.activity.IsIdle(m.config.Idle.Timeout),
	}
}

// TimeUntilExpiry returns the remaining validity window of the current
// credential. The second return is false when unauthenticated.
//
// TimeUntilExpiry does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) TimeUntilExpiry() (time.Duration, bool) {
	if m == nil {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return 0, false
	}
	return m.current.TimeUntilExpiry(m.clock.Now()), true
}

// IsExpiringSoon reports whether the current credential is inside the given
// window before expiry. A window <= 0 falls back to the configured refresh
// threshold.
//
// IsExpiringSoon does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsExpiringSoon(window time.Duration) bool {
	if m == nil {
		return false
	}
	if window <= 0 {
		window = m.config.Refresh.Threshold
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current != nil && m.current.WithinThreshold(m.clock.Now(), window)
}

// ShouldRefresh reports whether the current credential is inside the
// configured refresh threshold.
//
// ShouldRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) ShouldRefresh() bool {
	return m.IsExpiringSoon(0)
}

// IsValid reports whether a credential is held and not yet expired.
//
// IsValid does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsValid() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current != nil && !m.current.Expired(m.clock.Now())
}

// SessionSnapshot returns the current session (subject snapshot, credential,
// last activity), or false when unauthenticated.
//
// SessionSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) SessionSnapshot() (*Session, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, false
	}

	user := UserSnapshot{SubjectID: m.current.SubjectID}
	if m.user != nil {
		user = *m.user
	}

	return &Session{
		User:           user,
		Credential:     *m.current,
		LastActivityAt: m.activity.LastActivity(),
	}, true
}

// RecordActivity marks the current instant as the last user interaction.
//
// RecordActivity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) RecordActivity() {
	if m == nil {
		return
	}
	m.activity.RecordActivity()
}

// IsIdle reports whether the session exceeded the configured idle timeout,
// regardless of token validity.
//
// IsIdle does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsIdle() bool {
	if m == nil {
		return false
	}
	return m.activity.IsIdle(m.config.Idle.Timeout)
}

// Activity exposes the tracker so host applications can wire their own
// activity signal sources to it.
//
// Activity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Activity() *ActivityTracker {
	if m == nil {
		return nil
	}
	return m.activity
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return m.metrics.Snapshot()
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.events.Dropped()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) validateCredential(cred Credential) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrInvalidCredential)
	}
	if cred.RefreshToken == "" {
		return fmt.Errorf("%w: empty refresh token", ErrInvalidCredential)
	}
	if !cred.ExpiresAt.After(m.clock.Now()) {
		return fmt.Errorf("%w: expiry not in the future", ErrInvalidCredential)
	}
	return nil
}

// installLocked replaces the current credential whole: persist, swap the
// snapshot, reschedule the timer, notify. Caller holds m.mu.
func (m *Manager) installLocked(ctx context.Context, cred Credential, kind EventKind) {
	if !m.degraded {
		if err := m.store.Put(ctx, cred); err != nil {
			m.degradeLocked("put", err)
		}
	}

	next := cred
	m.current = &next
	m.state = StateAuthenticated
	m.scheduleLocked(cred)
	m.metricInc(MetricCredentialInstalled)
	m.emitLocked(kind, &cred)
}

// teardownLocked destroys the credential and session: timer cancelled, store
// cleared, state Unauthenticated, subscribers notified. Caller holds m.mu.
func (m *Manager) teardownLocked(ctx context.Context, kind EventKind) {
	m.cancelTimerLocked()
	if err := m.store.Clear(ctx); err != nil {
		m.degradeLocked("clear", err)
	}
	m.current = nil
	m.user = nil
	m.restored = true
	m.state = StateUnauthenticated
	m.emitLocked(kind, nil)
}

func (m *Manager) emitLocked(kind EventKind, cred *Credential) {
	m.events.emit(Event{Kind: kind, Credential: cred, At: m.clock.Now()})
}

func (m *Manager) degradeLocked(op string, err error) {
	if !m.degraded {
		m.degraded = true
		m.metricInc(MetricStoreDegraded)
	}
	log.Printf("goKeeper: credential store %s failed, continuing memory-only: %v", op, err)
}

// restoreLocked loads a persisted credential once per Manager lifetime, so a
// restarted process resumes its session without a fresh login. Caller holds m.mu.
func (m *Manager) restoreLocked(ctx context.Context) {
	if m.restored {
		return
	}
	m.restored = true

	if m.current != nil {
		return
	}

	cred, err := m.store.Get(ctx)
	if err != nil {
		m.degradeLocked("get", err)
		return
	}
	if cred == nil || cred.Expired(m.clock.Now()) {
		return
	}

	m.current = cred
	m.state = StateAuthenticated
	m.scheduleLocked(*cred)
}

// scheduleLocked re-arms the proactive refresh timer at ExpiresAt - Threshold.
// The timer is exclusively owned here; no external code schedules refreshes.
// Caller holds m.mu.
func (m *Manager) scheduleLocked(cred Credential) {
	m.cancelTimerLocked()

	delay := cred.ExpiresAt.Add(-m.config.Refresh.Threshold).Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}

	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() {
		m.timerFired(gen)
	})
	m.metricInc(MetricRefreshScheduled)
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) timerFired(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.generation || m.current == nil {
		m.mu.Unlock()
		return
	}
	call := m.refreshLocked()
	m.mu.Unlock()

	go func() {
		if _, err := call.wait(context.Background()); err != nil {
			log.Printf("goKeeper: scheduled refresh failed: %v", err)
		}
	}()
}
