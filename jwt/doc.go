// Package jwt manages optional short-lived access-token issuance and
// verification on top of the opaque session system. The session token remains
// the authoritative credential; access tokens only let read-heavy callers skip
// a Redis round-trip between refreshes.
package jwt
