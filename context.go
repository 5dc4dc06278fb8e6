package goIdentity

import "context"

type contextKey int

const (
	clientIPKey contextKey = iota
	userAgentKey
	sessionKey
)

// WithClientIP attaches the caller's source IP to the context. Rate limiters
// and audit events pick it up when present.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the IP set by [WithClientIP], or "" when absent.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithUserAgent attaches the caller's user agent to the context for audit
// metadata.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// UserAgent returns the user agent set by [WithUserAgent], or "" when absent.
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}

// WithSession attaches a validated session to the context. Used by the HTTP
// middleware after a successful Validate.
func WithSession(ctx context.Context, session SessionInfo) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session attached by [WithSession].
func SessionFromContext(ctx context.Context) (SessionInfo, bool) {
	session, ok := ctx.Value(sessionKey).(SessionInfo)
	return session, ok
}
