// Package middleware exposes HTTP middleware adapters built on top of
// goIdentity.Engine validation.
//
// # Guards
//
//   - [RequireSession] — opaque-token session verification, one Redis call.
//   - [RequireAccess] — stateless access-token verification, no Redis call.
//
// Each guard reads the Authorization header, asks the engine to validate, and
// injects the validated session into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
