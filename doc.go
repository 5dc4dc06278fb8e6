// Package goIdentity provides a credential-verification and session-issuance
// engine with OTP-gated email verification and password reset, WebAuthn
// (platform biometric) registration and login ceremonies, and Redis-backed
// opaque sessions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (SessionInfo, LoginResult, MetricsSnapshot, etc.). All internal coordination —
// challenge storage, ceremony state, rate limiting, audit dispatch — lives under
// internal/ and is never exported.
//
// Durable user records are never owned by the engine. Callers inject a [UserProvider]
// (account rows plus bound WebAuthn credentials) and a [Notifier] (OTP delivery); the
// engine owns only ephemeral security state in Redis.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Deliver email or SMS itself (delegates to the injected [Notifier]).
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//
// # Performance contract
//
// Validate is the hot path. It must complete in a single Redis round-trip and must not
// allocate beyond the returned SessionInfo. Login, Register, and the ceremony
// operations are allowed a small constant number of Redis round-trips per call.
package goIdentity
