package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
)

// VerifyOTP answers an outstanding challenge. Every call consumes one attempt
// BEFORE the code is compared; the decrement is not refunded on mismatch, and
// concurrent calls cannot share an attempt.
//
// A correct code on a verification challenge marks the account verified and
// opens a short single-use window during which the account may bind a
// biometric credential without logging in first. A correct code on a reset
// challenge mints the grant that authorizes the follow-up
// [Engine.ResetPassword] call.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string, purpose OTPPurpose) (VerifyOTPResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return VerifyOTPResult{}, err
	}
	if code == "" {
		return VerifyOTPResult{}, ErrInvalidInput
	}

	sp, err := storePurpose(purpose)
	if err != nil {
		return VerifyOTPResult{}, err
	}

	record, err := e.otpStore.Consume(ctx, email, sp, internal.HashCode(code))
	if err != nil {
		mapped := mapOTPError(err)
		e.metricOTPFailure(mapped)
		e.emitAudit(ctx, AuditEvent{
			EventType: eventOTPVerifyFailure,
			Email:     email,
			Success:   false,
			Error:     errString(mapped),
			Metadata:  map[string]string{"purpose": string(purpose)},
		})
		return VerifyOTPResult{}, mapped
	}

	result := VerifyOTPResult{
		UserID:  record.UserID,
		Purpose: purpose,
	}

	switch sp {
	case stores.PurposeVerify:
		if err := e.userProvider.MarkVerified(ctx, record.UserID); err != nil {
			return VerifyOTPResult{}, wrapStoreErr(err)
		}
		if ttl := e.config.Registration.PendingGrantTTL; ttl > 0 {
			expiresAt := time.Now().Add(ttl)
			err := e.grantStore.SavePending(ctx, record.UserID, &stores.PendingRegistrationRecord{
				Email:     email,
				ExpiresAt: expiresAt.Unix(),
			}, ttl)
			if err != nil {
				return VerifyOTPResult{}, wrapStoreErr(err)
			}
			result.GrantExpiresAt = expiresAt
		}
	case stores.PurposeReset:
		ttl := e.config.PasswordReset.GrantTTL
		expiresAt := time.Now().Add(ttl)
		err := e.grantStore.SaveResetGrant(ctx, email, &stores.ResetGrantRecord{
			UserID:    record.UserID,
			CodeHash:  record.CodeHash,
			ExpiresAt: expiresAt.Unix(),
			Attempts:  uint16(e.config.PasswordReset.MaxAttempts),
		}, ttl)
		if err != nil {
			return VerifyOTPResult{}, wrapStoreErr(err)
		}
		result.GrantExpiresAt = expiresAt
	}

	e.metrics.Inc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventOTPVerifySuccess,
		UserID:    record.UserID,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"purpose": string(purpose)},
	})

	return result, nil
}

// issueOTPChallenge generates, persists, and delivers one challenge. Issuing
// over an existing (email, purpose) pair replaces the old challenge; prior
// codes stop verifying immediately.
func (e *Engine) issueOTPChallenge(ctx context.Context, userID, email string, purpose OTPPurpose) (time.Time, error) {
	sp, err := storePurpose(purpose)
	if err != nil {
		return time.Time{}, err
	}

	if err := e.otpLimiter.CheckIssue(ctx, byte(sp), email, ClientIP(ctx)); err != nil {
		if errors.Is(err, limiters.ErrOTPRateLimited) {
			e.emitRateLimit(ctx, email, "otp_issue")
			return time.Time{}, ErrRateLimited
		}
		return time.Time{}, wrapStoreErr(err)
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return time.Time{}, err
	}

	ttl := e.config.OTP.TTL
	expiresAt := time.Now().Add(ttl)

	record := &stores.OTPRecord{
		UserID:    userID,
		CodeHash:  internal.HashCode(code),
		ExpiresAt: expiresAt.Unix(),
		Attempts:  uint16(e.config.OTP.MaxAttempts),
		Purpose:   sp,
	}
	if err := e.otpStore.Save(ctx, email, record, ttl); err != nil {
		return time.Time{}, wrapStoreErr(err)
	}

	if err := e.notifier.SendOTP(ctx, email, code, purpose); err != nil {
		// A code the user can never receive is a liability; drop it.
		_ = e.otpStore.Delete(ctx, email, sp)
		return time.Time{}, errors.Join(ErrNotifierFailed, err)
	}

	e.metrics.Inc(MetricOTPIssued)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventOTPIssued,
		UserID:    userID,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"purpose": string(purpose)},
	})

	return expiresAt, nil
}

func (e *Engine) metricOTPFailure(err error) {
	if errors.Is(err, ErrAttemptsExhausted) {
		e.metrics.Inc(MetricOTPAttemptsExceeded)
		return
	}
	e.metrics.Inc(MetricOTPVerifyFailure)
}

func storePurpose(purpose OTPPurpose) (stores.Purpose, error) {
	switch purpose {
	case PurposeVerify:
		return stores.PurposeVerify, nil
	case PurposeReset:
		return stores.PurposeReset, nil
	default:
		return 0, ErrInvalidInput
	}
}

func mapOTPError(err error) error {
	switch {
	case errors.Is(err, stores.ErrOTPNotFound):
		return ErrNoActiveChallenge
	case errors.Is(err, stores.ErrOTPExpired):
		return ErrChallengeExpired
	case errors.Is(err, stores.ErrOTPCodeMismatch):
		return ErrCodeMismatch
	case errors.Is(err, stores.ErrOTPAttemptsExhausted):
		return ErrAttemptsExhausted
	default:
		return wrapStoreErr(err)
	}
}
