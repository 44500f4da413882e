package goKeeper

import (
	"errors"

	"github.com/MrEthical07/goKeeper/credential"
)

// Builder defines a public type used by goKeeper APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config   Config
	store    credential.Store
	executor RefreshExecutor
	clock    Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithExecutor describes the withexecutor operation and its observable behavior.
//
// WithExecutor may return an error when input validation, dependency calls, or security checks fail.
// WithExecutor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithExecutor(executor RefreshExecutor) *Builder {
	b.executor = executor
	return b
}

// WithClock describes the withclock operation and its observable behavior.
//
// WithClock may return an error when input validation, dependency calls, or security checks fail.
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.executor == nil {
		return nil, errors.New("refresh executor required")
	}

	store := b.store
	if store == nil {
		store = credential.NewMemoryStore()
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock()
	}

	m := &Manager{
		config:   cfg,
		store:    store,
		executor: b.executor,
		clock:    clock,
		done:     make(chan struct{}),
	}
	m.events = newEventDispatcher(cfg.Events)
	m.metrics = NewMetrics(cfg.Metrics)
	m.activity = NewActivityTracker(clock)

	b.built = true

	return m, nil
}
