package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/password"
)

// ForgotPassword starts the reset flow. It is deliberately success-shaped:
// the outcome is identical whether or not the email belongs to an account,
// and unknown emails never generate a notification. Rate-limited requests
// also return success; the challenge is simply not issued.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricForgotPasswordRequest)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventForgotPasswordRequest,
		Email:     email,
		Success:   true,
	})

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable work so the unknown-email path is not
			// observably cheaper, then report success.
			if code, genErr := internal.NewOTP(e.config.OTP.Digits); genErr == nil {
				internal.HashCode(code)
			}
			return nil
		}
		return wrapStoreErr(err)
	}

	if _, err := e.issueOTPChallenge(ctx, user.ID, email, PurposeReset); err != nil {
		if errors.Is(err, ErrRateLimited) {
			return nil
		}
		return err
	}

	return nil
}

// ResetPassword rewrites the account password after code verification. The
// code may come from the still-active reset challenge or from the grant
// minted by a prior [Engine.VerifyOTP] call; either way attempts are
// decremented before comparison and success is one-shot. A successful reset
// revokes every session the user holds.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPass, confirm string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if code == "" {
		return ErrInvalidInput
	}
	if newPass != confirm {
		return ErrPasswordConfirmMismatch
	}
	if err := password.CheckPolicy(newPass); err != nil {
		return ErrWeakPassword
	}

	userID, err := e.consumeResetAuthorization(ctx, email, internal.HashCode(code))
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: eventPasswordResetConfirm,
			Email:     email,
			Success:   false,
			Error:     errString(err),
		})
		return err
	}

	newHash, err := e.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return wrapStoreErr(err)
	}

	// The old credential may be compromised; nothing issued under it survives.
	if err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
		return wrapStoreErr(err)
	}
	_ = e.otpStore.Delete(ctx, email, stores.PurposeReset)

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventPasswordResetConfirm,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})

	return nil
}

// consumeResetAuthorization accepts either the grant minted by VerifyOTP or,
// when no grant exists, the active reset challenge itself. Both paths share
// the decrement-before-compare discipline.
func (e *Engine) consumeResetAuthorization(ctx context.Context, email string, hash [32]byte) (string, error) {
	grant, err := e.grantStore.ConsumeResetGrant(ctx, email, hash)
	if err == nil {
		return grant.UserID, nil
	}

	switch {
	case errors.Is(err, stores.ErrGrantNotFound):
		record, otpErr := e.otpStore.Consume(ctx, email, stores.PurposeReset, hash)
		if otpErr != nil {
			return "", mapOTPError(otpErr)
		}
		return record.UserID, nil
	case errors.Is(err, stores.ErrGrantCodeMismatch):
		return "", ErrCodeMismatch
	case errors.Is(err, stores.ErrGrantAttemptsExhausted):
		return "", ErrAttemptsExhausted
	default:
		return "", wrapStoreErr(err)
	}
}
