// Package session implements the Redis-backed opaque session store.
//
// # Design
//
// A session is identified only by its high-entropy token; the token maps to a
// versioned binary record holding the owning user, the user type, and the
// issue/expiry instants. Lifetime is absolute from issuance — validation never
// extends it, re-authentication issues a fresh token. An expired session is
// indistinguishable from one that never existed.
//
// A per-user index set supports invalidate-all (used on password reset), and a
// tracked counter exposes the active session total without key scans.
//
// # What this package must NOT do
//
//   - Derive tokens from user identity or any predictable input.
//   - Slide expirations or resurrect expired records.
//   - Import goIdentity (the root package wraps this one, not the reverse).
package session
