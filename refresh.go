package goKeeper

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// refreshCall is the singleflight slot: exactly one exists per in-flight
// refresh, and every concurrent caller waits on the same done channel.
type refreshCall struct {
	done chan struct{}
	once sync.Once
	cred Credential
	err  error
}

func newRefreshCall() *refreshCall {
	return &refreshCall{done: make(chan struct{})}
}

func (c *refreshCall) resolve(cred Credential, err error) {
	c.once.Do(func() {
		c.cred = cred
		c.err = err
		close(c.done)
	})
}

// wait blocks until the shared result resolves or the caller's context ends.
// A caller abandoning the wait does not cancel the refresh for the others.
func (c *refreshCall) wait(ctx context.Context) (Credential, error) {
	select {
	case <-c.done:
		return c.cred, c.err
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

// refreshLocked is the singleflight check-and-set: join the in-flight call if
// one exists, otherwise start one. Caller holds m.mu.
func (m *Manager) refreshLocked() *refreshCall {
	if m.inflight != nil {
		m.metricInc(MetricRefreshShared)
		return m.inflight
	}

	call := newRefreshCall()
	m.inflight = call
	m.state = StateRefreshing

	gen := m.generation
	refreshToken := m.current.RefreshToken
	go m.runRefresh(gen, refreshToken, call)

	return call
}

// runRefresh drives one refresh through at most MaxRetries executor attempts
// with bounded exponential backoff. It resolves the shared call in every
// terminal case; the in-flight slot is never left dangling.
func (m *Manager) runRefresh(gen uint64, refreshToken string, call *refreshCall) {
	cfg := m.config.Refresh

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !m.waitBackoff(backoffDelay(cfg, attempt-1)) {
				call.resolve(Credential{}, ErrManagerClosed)
				return
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ExecutorTimeout)
		cred, err := m.executor.Exchange(ctx, refreshToken)
		cancel()

		if err == nil {
			if verr := m.validateCredential(cred); verr != nil {
				// Malformed executor response: fail fast, never
				// retried, never persisted.
				m.finishInvalid(gen, call, verr)
				return
			}
			m.finishSuccess(gen, call, cred)
			return
		}

		if errors.Is(err, ErrRefreshRejected) {
			m.metricInc(MetricRefreshRejected)
			m.finishTerminal(gen, call, err)
			return
		}

		lastErr = err
		m.metricInc(MetricRefreshAttemptFailure)
	}

	m.metricInc(MetricRefreshExhausted)
	m.finishTerminal(gen, call, fmt.Errorf("%w: %v", ErrRefreshExhausted, lastErr))
}

// finishSuccess installs the refreshed credential unless the generation moved
// while the exchange was in flight, in which case the stale result is
// discarded and waiters resolve against whatever the Manager holds now.
func (m *Manager) finishSuccess(gen uint64, call *refreshCall, cred Credential) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		call.resolve(Credential{}, ErrManagerClosed)
		return
	}

	if gen != m.generation {
		m.metricInc(MetricRefreshStale)
		current := m.current
		m.mu.Unlock()
		if current != nil {
			call.resolve(*current, nil)
		} else {
			call.resolve(Credential{}, ErrNotAuthenticated)
		}
		return
	}

	if m.inflight == call {
		m.inflight = nil
	}
	m.installLocked(context.Background(), cred, EventRefreshed)
	m.metricInc(MetricRefreshSuccess)
	m.mu.Unlock()

	call.resolve(cred, nil)
}

// finishTerminal tears the session down after a rejected or exhausted refresh
// and surfaces the terminal error to every waiter.
func (m *Manager) finishTerminal(gen uint64, call *refreshCall, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		call.resolve(Credential{}, ErrManagerClosed)
		return
	}

	if gen != m.generation {
		m.metricInc(MetricRefreshStale)
		m.mu.Unlock()
		call.resolve(Credential{}, ErrNotAuthenticated)
		return
	}

	if m.inflight == call {
		m.inflight = nil
	}
	m.teardownLocked(context.Background(), EventExpired)
	m.mu.Unlock()

	call.resolve(Credential{}, err)
}

// finishInvalid resolves the terminal error without tearing the session down;
// the previously installed credential stays current.
func (m *Manager) finishInvalid(gen uint64, call *refreshCall, err error) {
	m.mu.Lock()
	if !m.closed && gen == m.generation {
		if m.inflight == call {
			m.inflight = nil
		}
		if m.current != nil {
			m.state = StateAuthenticated
		} else {
			m.state = StateUnauthenticated
		}
	}
	m.mu.Unlock()

	call.resolve(Credential{}, err)
}

func (m *Manager) waitBackoff(d time.Duration) bool {
	t := m.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C():
		return true
	case <-m.done:
		return false
	}
}

func backoffDelay(cfg RefreshConfig, attempt int) time.Duration {
	delay := cfg.RetryDelayBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.RetryDelayMax {
			break
		}
	}
	if delay > cfg.RetryDelayMax {
		delay = cfg.RetryDelayMax
	}

	if cfg.JitterEnabled {
		delay += jitterDuration(cfg.JitterRange)
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}

func jitterDuration(jitterRange time.Duration) time.Duration {
	if jitterRange <= 0 {
		return 0
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(jitterRange)*2+1))
	if err != nil {
		return 0
	}

	return time.Duration(n.Int64() - int64(jitterRange))
}
