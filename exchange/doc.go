// Package exchange provides the HTTP refresh executor: one network round-trip
// exchanging a refresh token for a new credential against a JSON token
// endpoint.
//
// # Error classification
//
// The executor maps backend responses onto the Manager's retry policy:
// 401/403 and OAuth-style invalid_grant responses wrap
// [goKeeper.ErrRefreshRejected] (terminal, never retried); timeouts, transport
// failures, and other statuses are plain errors (transient, retried with
// backoff by the Manager).
//
// # Architecture boundaries
//
// This package performs the network call and interprets the wire response. It
// does NOT retry, schedule, persist, or deduplicate; that policy belongs to
// the Manager, which calls Exchange through the RefreshExecutor capability.
//
// # What this package must NOT do
//
//   - Hold or mutate the current credential.
//   - Retry internally; a single Exchange is a single attempt.
//   - Validate token signatures; the expiry claim is read unverified solely
//     to recover a missing expiresAt field.
package exchange
