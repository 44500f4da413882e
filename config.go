package goKeeper

import (
	"errors"
	"time"
)

// Config defines a public type used by goKeeper APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Refresh RefreshConfig
	Idle    IdleConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by goKeeper APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// Threshold is the lead time before expiry at which proactive refresh
	// is triggered.
	Threshold time.Duration
	// MaxRetries is the total number of executor attempts per refresh
	// before the Manager gives up with ErrRefreshExhausted.
	MaxRetries int
	// RetryDelayBase is the first backoff delay; attempt n waits
	// RetryDelayBase * 2^n, capped at RetryDelayMax.
	RetryDelayBase time.Duration
	RetryDelayMax  time.Duration
	// JitterEnabled spreads backoff delays by ±JitterRange to avoid a
	// thundering herd across instances sharing one backend.
	JitterEnabled bool
	JitterRange   time.Duration
	// ExecutorTimeout bounds a single Exchange call; exceeding it counts
	// as a failed attempt for retry purposes.
	ExecutorTimeout time.Duration
}

/*
====================================
IDLE CONFIG
====================================
*/

// IdleConfig defines a public type used by goKeeper APIs.
//
// IdleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdleConfig struct {
	// Timeout is the maximum gap since the last recorded user activity
	// before the session counts as idle. Independent of token expiry.
	Timeout time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig defines a public type used by goKeeper APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	BufferSize int
	// DropIfFull drops events instead of blocking transitions when the
	// dispatch buffer is full. Dropped events are counted.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goKeeper APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			Threshold:       5 * time.Minute,
			MaxRetries:      3,
			RetryDelayBase:  1 * time.Second,
			RetryDelayMax:   30 * time.Second,
			JitterEnabled:   true,
			JitterRange:     250 * time.Millisecond,
			ExecutorTimeout: 30 * time.Second,
		},
		Idle: IdleConfig{
			Timeout: 30 * time.Minute,
		},
		Events: EventsConfig{
			BufferSize: 64,
			DropIfFull: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// Config carries no reference fields; a value copy is a deep copy.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Refresh
	if c.Refresh.Threshold <= 0 {
		return errors.New("Refresh Threshold must be > 0")
	}
	if c.Refresh.MaxRetries < 1 {
		return errors.New("Refresh MaxRetries must be >= 1")
	}
	if c.Refresh.RetryDelayBase <= 0 {
		return errors.New("Refresh RetryDelayBase must be > 0")
	}
	if c.Refresh.RetryDelayMax < c.Refresh.RetryDelayBase {
		return errors.New("Refresh RetryDelayMax must be >= RetryDelayBase")
	}
	if c.Refresh.JitterRange < 0 {
		return errors.New("Refresh JitterRange must be >= 0")
	}
	if c.Refresh.JitterEnabled && c.Refresh.JitterRange <= 0 {
		return errors.New("Refresh JitterRange must be > 0 when JitterEnabled is true")
	}
	if c.Refresh.ExecutorTimeout <= 0 {
		return errors.New("Refresh ExecutorTimeout must be > 0")
	}

	// Idle
	if c.Idle.Timeout <= 0 {
		return errors.New("Idle Timeout must be > 0")
	}

	// Events
	if c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0")
	}

	return nil
}
