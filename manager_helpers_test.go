package goKeeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goKeeper/credential"
)

// fakeClock is a manually advanced Clock. Advance moves Now and fires every
// timer whose deadline has been reached, on the calling goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clk     *fakeClock
	when    time.Time
	fn      func()
	ch      chan time.Time
	stopped bool
	fired   bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clk: c, when: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.fired = true
		t.ch <- c.now
		return t
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	t := &fakeTimer{clk: c, when: c.now.Add(d), fn: fn}
	if d <= 0 {
		t.fired = true
		c.mu.Unlock()
		go fn()
		return t
	}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*fakeTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.when.After(now) {
			t.fired = true
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		if t.fn != nil {
			t.fn()
		} else {
			select {
			case t.ch <- now:
			default:
			}
		}
	}
}

// nextDeadline returns the earliest pending timer deadline.
func (c *fakeClock) nextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best time.Time
	found := false
	for _, t := range c.timers {
		if t.stopped || t.fired {
			continue
		}
		if !found || t.when.Before(best) {
			best = t.when
			found = true
		}
	}
	return best, found
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// scriptedExecutor returns queued results in order; when the queue is empty it
// repeats the last entry. An optional delay simulates network latency.
type scriptedExecutor struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   atomic.Int64
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

type scriptedResult struct {
	cred Credential
	err  error
}

func (e *scriptedExecutor) Exchange(ctx context.Context, refreshToken string) (Credential, error) {
	e.calls.Add(1)
	e.once.Do(func() {
		if e.started != nil {
			close(e.started)
		}
	})
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.results) == 0 {
		return Credential{}, errors.New("scripted executor: no result queued")
	}
	r := e.results[0]
	if len(e.results) > 1 {
		e.results = e.results[1:]
	}
	return r.cred, r.err
}

func (e *scriptedExecutor) callCount() int64 {
	return e.calls.Load()
}

// gateExecutor blocks every Exchange until release is closed.
type gateExecutor struct {
	cred    Credential
	err     error
	release chan struct{}
	started chan struct{}
	calls   atomic.Int64
	once    sync.Once
}

func (e *gateExecutor) Exchange(ctx context.Context, refreshToken string) (Credential, error) {
	e.calls.Add(1)
	e.once.Do(func() {
		if e.started != nil {
			close(e.started)
		}
	})
	select {
	case <-e.release:
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
	return e.cred, e.err
}

// failStore counts operations and fails the ones toggled on.
type failStore struct {
	inner    *credential.MemoryStore
	failPut  bool
	failGet  bool
	puts     atomic.Int64
	clears   atomic.Int64
	storeErr error
}

func newFailStore() *failStore {
	return &failStore{
		inner:    credential.NewMemoryStore(),
		storeErr: credential.ErrUnavailable,
	}
}

func (s *failStore) Get(ctx context.Context) (*Credential, error) {
	if s.failGet {
		return nil, s.storeErr
	}
	return s.inner.Get(ctx)
}

func (s *failStore) Put(ctx context.Context, cred Credential) error {
	s.puts.Add(1)
	if s.failPut {
		return s.storeErr
	}
	return s.inner.Put(ctx, cred)
}

func (s *failStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.inner.Clear(ctx)
}

// eventCollector records delivered events; safe across the dispatcher
// goroutine and test assertions.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) listener() Listener {
	return func(e Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	}
}

func (c *eventCollector) kinds() []EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EventKind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

func fastRetryConfig() Config {
	cfg := defaultConfig()
	cfg.Refresh.RetryDelayBase = time.Millisecond
	cfg.Refresh.RetryDelayMax = 4 * time.Millisecond
	cfg.Refresh.JitterEnabled = false
	cfg.Refresh.JitterRange = 0
	cfg.Refresh.ExecutorTimeout = 5 * time.Second
	return cfg
}

func testCredential(now time.Time, ttl time.Duration) Credential {
	return Credential{
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		ExpiresAt:    now.Add(ttl),
		SubjectID:    "user-1",
	}
}

func newTestManager(t *testing.T, cfg Config, executor RefreshExecutor, opts ...func(*Builder)) *Manager {
	t.Helper()

	b := New().WithConfig(cfg).WithExecutor(executor)
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}
