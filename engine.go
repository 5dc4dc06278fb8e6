package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the central identity coordinator. All flows — registration, OTP
// verification, password and biometric login, password reset, session
// management — run through Engine methods. Construct it with [Builder.Build];
// the zero value is not usable.
type Engine struct {
	config Config

	userProvider UserProvider
	notifier     Notifier

	sessionStore  *session.Store
	otpStore      *stores.OTPStore
	grantStore    *stores.GrantStore
	ceremonyStore *stores.CeremonyStore
	otpLimiter    *limiters.OTPLimiter
	loginLimiter  *limiters.LoginLimiter

	hasher    *password.Argon2
	dummyHash string

	webauthn ceremonyProvider
	parser   ceremonyParser

	jwtManager *jwt.Manager

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Validate resolves an opaque session token to its session. Unknown, expired,
// and revoked tokens all fail with [ErrSessionNotFound]; the caller cannot
// distinguish which it was.
//
//	Performance: 1 Redis GET on the happy path.
func (e *Engine) Validate(ctx context.Context, token string) (SessionInfo, error) {
	start := time.Now()

	if token == "" {
		return SessionInfo{}, ErrInvalidInput
	}
	if _, err := parseToken(token); err != nil {
		return SessionInfo{}, ErrSessionNotFound
	}

	sess, err := e.sessionStore.Get(ctx, token)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionInfo{}, ErrSessionNotFound
		}
		return SessionInfo{}, wrapStoreErr(err)
	}

	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	return sessionInfo(sess), nil
}

// Logout revokes a single session. Revoking an unknown or already-expired
// token succeeds; logout is idempotent.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidInput
	}

	if err := e.sessionStore.Delete(ctx, token); err != nil {
		return wrapStoreErr(err)
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionInvalidated)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventLogout,
		Success:   true,
	})

	return nil
}

// LogoutAll revokes every session belonging to a user, including the one the
// call was made with.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidInput
	}

	if err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
		return wrapStoreErr(err)
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventLogoutAll,
		UserID:    userID,
		Success:   true,
	})

	return nil
}

// ActiveSessionCount reports how many sessions are currently tracked for a
// user.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	count, err := e.sessionStore.ActiveSessionCount(ctx, userID)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return count, nil
}

// SessionCount reports the store-wide active session counter.
func (e *Engine) SessionCount(ctx context.Context) (int, error) {
	count, err := e.sessionStore.SessionCount(ctx)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return count, nil
}

// IssueAccessToken mints a short-lived signed access token bound to an
// existing session. The session token remains the authoritative credential;
// access tokens exist so read-heavy callers can skip a Redis round-trip
// between refreshes.
func (e *Engine) IssueAccessToken(ctx context.Context, sessionToken string) (string, error) {
	if e.jwtManager == nil {
		return "", ErrAccessTokensDisabled
	}

	info, err := e.Validate(ctx, sessionToken)
	if err != nil {
		return "", err
	}

	return e.jwtManager.CreateAccess(info.UserID, info.UserType, info.Token)
}

// ValidateAccess verifies a signed access token offline. It does NOT check
// whether the backing session still exists; use [Engine.Validate] when
// revocation must be visible immediately.
func (e *Engine) ValidateAccess(tokenStr string) (userID, userType, sessionToken string, err error) {
	if e.jwtManager == nil {
		return "", "", "", ErrAccessTokensDisabled
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return "", "", "", ErrTokenInvalid
	}

	return claims.UID, claims.UT, claims.SID, nil
}

// Ping checks Redis availability and reports round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	return e.sessionStore.Ping(ctx)
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// MetricValue describes the metricvalue operation and its observable behavior.
//
// MetricValue may return an error when input validation, dependency calls, or security checks fail.
// MetricValue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricValue(id MetricID) uint64 {
	return e.metrics.Value(id)
}

// AuditDropped reports how many audit events were dropped due to a full
// buffer since the engine started.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close drains the audit dispatcher. The engine must not be used after Close.
func (e *Engine) Close() {
	e.audit.Close()
}

// issueSession mints an opaque token and persists the session with the
// configured absolute lifetime.
func (e *Engine) issueSession(ctx context.Context, userID, userType string) (SessionInfo, error) {
	token, err := newSessionToken()
	if err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	sess := &session.Session{
		Token:     token,
		UserID:    userID,
		UserType:  userType,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.Lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, e.config.Session.Lifetime); err != nil {
		return SessionInfo{}, wrapStoreErr(err)
	}

	e.metrics.Inc(MetricSessionCreated)

	return sessionInfo(sess), nil
}

func sessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		Token:     sess.Token,
		UserID:    sess.UserID,
		UserType:  sess.UserType,
		CreatedAt: time.Unix(sess.CreatedAt, 0),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}
}

func wrapStoreErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
