package goIdentity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/password"
)

// Register creates an unverified account and issues a verification OTP
// challenge in one operation. The account exists immediately but cannot log
// in until the challenge is answered.
//
// If challenge issuance fails after the account row was created, the row is
// deleted again so a retry is not blocked by a half-registered email.
func (e *Engine) Register(ctx context.Context, email, pass, confirm string) (RegistrationResult, error) {
	if !e.config.Registration.Enabled {
		return RegistrationResult{}, ErrRegistrationDisabled
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return RegistrationResult{}, err
	}
	if pass != confirm {
		return RegistrationResult{}, ErrPasswordConfirmMismatch
	}

	if err := password.CheckPolicy(pass); err != nil {
		return RegistrationResult{}, ErrWeakPassword
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		return RegistrationResult{}, err
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		UserType:     e.config.Registration.DefaultUserType,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metrics.Inc(MetricRegisterDuplicate)
			e.emitAudit(ctx, AuditEvent{
				EventType: eventRegisterFailure,
				Email:     email,
				Success:   false,
				Error:     errString(ErrEmailTaken),
			})
			return RegistrationResult{}, ErrEmailTaken
		}
		e.metrics.Inc(MetricRegisterFailure)
		return RegistrationResult{}, wrapStoreErr(err)
	}

	expiresAt, err := e.issueOTPChallenge(ctx, user.ID, email, PurposeVerify)
	if err != nil {
		// Compensate: without a deliverable challenge the account can never
		// verify, so the creation is rolled back.
		if delErr := e.userProvider.DeleteUser(ctx, user.ID); delErr != nil {
			err = wrapStoreErr(delErr)
		}
		e.metrics.Inc(MetricRegisterFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: eventRegisterFailure,
			UserID:    user.ID,
			Email:     email,
			Success:   false,
			Error:     errString(err),
		})
		return RegistrationResult{}, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventRegisterSuccess,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})

	return RegistrationResult{
		UserID:             user.ID,
		ChallengeExpiresAt: expiresAt,
	}, nil
}

// ResendVerification issues a fresh verification challenge for an account
// that registered but never verified. The new challenge replaces any prior
// one; old codes stop working immediately.
func (e *Engine) ResendVerification(ctx context.Context, email string) (time.Time, error) {
	if !e.config.Registration.Enabled {
		return time.Time{}, ErrRegistrationDisabled
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return time.Time{}, err
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, wrapStoreErr(err)
	}
	if user.Verified {
		return time.Time{}, ErrNoActiveChallenge
	}

	return e.issueOTPChallenge(ctx, user.ID, email, PurposeVerify)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 {
		return "", ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidInput
	}
	return email, nil
}
