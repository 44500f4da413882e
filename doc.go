// Package goKeeper provides a client-side authentication token lifecycle manager:
// proactive refresh scheduling, singleflight refresh deduplication, bounded
// retry with exponential backoff, idle-session tracking, and ordered state
// change notification.
//
// The package is designed for concurrent callers: Manager methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
// Concurrent [Manager.Refresh] and [Manager.EnsureValid] calls never produce
// more than one in-flight network exchange; all callers share the same result.
//
// # Architecture boundaries
//
// goKeeper is the public surface. It exposes [Manager], [Builder], [Config],
// and value types (Credential, Event, MetricsSnapshot, etc.). Credential
// persistence lives in the credential package; the HTTP refresh executor lives
// in the exchange package. The Manager consumes both only through the
// [CredentialStore] and [RefreshExecutor] capabilities.
//
// # What this package must NOT do
//
//   - Perform the refresh network call itself; that belongs to the injected
//     [RefreshExecutor].
//   - Read wall-clock time directly; all time flows through the injected
//     [Clock] so scheduling policy is testable with a manual clock.
//   - Keep ambient global state; every Manager is an explicit instance with
//     explicit dependencies.
//
// # Concurrency contract
//
// All state transitions happen under a single Manager mutex; notifications are
// enqueued under that mutex and drained by one dispatcher goroutine, so
// listeners observe transitions in the order they occurred. Logout is the only
// cancellation primitive and is soft: an in-flight exchange is not aborted,
// but its result is discarded when the Manager's generation counter has moved.
package goKeeper
