// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive identity flows: OTP challenges, post-OTP grants, and
// WebAuthn ceremony state.
//
// # Design
//
// Each store persists a record in Redis with a TTL. Mutation operations use
// either a Lua script (OTP consume) or WATCH/MULTI optimistic transactions
// with automatic retry on contention (grant consume), so two concurrent
// consumers of the same challenge can never both observe the pre-decrement
// attempt count. Records are single-use: consumed or deleted on success, and
// enforce attempt limits to resist brute-force attacks. Secret comparisons
// use constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// challenge records. It does NOT generate codes, enforce issue-side rate
// limits, or make authentication decisions — those responsibilities belong to
// the Engine flows in the root package.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Log or expose plaintext secrets.
//   - Use non-constant-time comparisons for secret matching.
package stores
