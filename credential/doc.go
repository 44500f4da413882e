// Package credential provides the immutable credential model and pluggable
// credential persistence for the token lifecycle manager.
//
// # Persistence contract
//
// A [Store] is a single-slot key-value capability: it holds at most one current
// [Credential]. Get may return a credential past its expiry; callers re-check
// Expired against their own clock and treat an expired slot like an empty one.
// [RedisStore] additionally ages records out through the key TTL. Put replaces
// the slot atomically.
//
// # Architecture boundaries
//
// This package owns the [Credential] model and its persistence ([MemoryStore],
// [RedisStore]). It does NOT decide when a credential is refreshed, retried, or
// cleared; that policy belongs to the Manager in the root package.
//
// # What this package must NOT do
//
//   - Import goKeeper or exchange (no upward imports).
//   - Perform refresh network calls.
//   - Mutate a stored Credential in place; replacement is always whole-value.
package credential
