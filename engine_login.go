package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/limiters"
)

// Login verifies an email/password pair and, on success, mints a new opaque
// session. Unknown emails and wrong passwords both fail with
// [ErrInvalidCredentials] after the same argon2 work, so response timing does
// not reveal whether the account exists.
func (e *Engine) Login(ctx context.Context, email, pass string) (LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return LoginResult{}, err
	}
	if pass == "" {
		return LoginResult{}, ErrInvalidInput
	}

	ip := ClientIP(ctx)

	if err := e.loginLimiter.Check(ctx, email, ip); err != nil {
		if errors.Is(err, limiters.ErrLoginRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, email, "login")
			return LoginResult{}, ErrRateLimited
		}
		return LoginResult{}, wrapStoreErr(err)
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same hashing cost as a real verification.
			_, _ = e.hasher.Verify(pass, e.dummyHash)
			return LoginResult{}, e.loginFailure(ctx, email, "", ErrInvalidCredentials)
		}
		return LoginResult{}, wrapStoreErr(err)
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, e.loginFailure(ctx, email, user.ID, ErrInvalidCredentials)
	}

	if !user.Verified {
		return LoginResult{}, e.loginFailure(ctx, email, user.ID, ErrAccountNotVerified)
	}

	e.maybeUpgradeHash(ctx, user.ID, pass, user.PasswordHash)

	_ = e.loginLimiter.Reset(ctx, email, ip)

	info, err := e.issueSession(ctx, user.ID, user.UserType)
	if err != nil {
		return LoginResult{}, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventLoginSuccess,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})

	return LoginResult{
		Session:  info,
		UserID:   user.ID,
		UserType: user.UserType,
	}, nil
}

func (e *Engine) loginFailure(ctx context.Context, email, userID string, cause error) error {
	_ = e.loginLimiter.IncrementFailure(ctx, email, ClientIP(ctx))

	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventLoginFailure,
		UserID:    userID,
		Email:     email,
		Success:   false,
		Error:     errString(cause),
	})

	return cause
}

// maybeUpgradeHash transparently re-hashes the password when the stored hash
// was produced with weaker parameters than currently configured. Failure to
// upgrade never fails the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, userID, pass, storedHash string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	needs, err := e.hasher.NeedsUpgrade(storedHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return
	}

	e.metrics.Inc(MetricPasswordUpgrade)
}
