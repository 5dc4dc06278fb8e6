// Package limiters provides Redis-backed fixed-window rate limiters for the
// identity engine's abuse-prone entry points.
//
// # Limiters
//
//   - [OTPLimiter] — per-email + per-IP throttle for challenge issuance, so a
//     single address cannot be flooded with notification traffic.
//   - [LoginLimiter] — per-email + per-IP throttle for password logins, with
//     an explicit reset on success.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy
// thresholds come from Config structs supplied at construction time. Counting
// here is windowed per caller; the per-challenge attempt caps live in the
// challenge records themselves (internal/stores).
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Make policy decisions beyond counting — Engine flows decide consequences.
package limiters
