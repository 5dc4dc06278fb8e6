package goIdentity

import "errors"

var (
	// ErrInvalidInput is an exported constant or variable used by the identity engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrWeakPassword is an exported constant or variable used by the identity engine.
	ErrWeakPassword = errors.New("password does not satisfy policy")
	// ErrPasswordConfirmMismatch is an exported constant or variable used by the identity engine.
	ErrPasswordConfirmMismatch = errors.New("password confirmation mismatch")
	// ErrEmailTaken is an exported constant or variable used by the identity engine.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is an exported constant or variable used by the identity engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is an exported constant or variable used by the identity engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotVerified is an exported constant or variable used by the identity engine.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrNoActiveChallenge is an exported constant or variable used by the identity engine.
	ErrNoActiveChallenge = errors.New("no active challenge")
	// ErrChallengeExpired is an exported constant or variable used by the identity engine.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrCodeMismatch is an exported constant or variable used by the identity engine.
	ErrCodeMismatch = errors.New("invalid code")
	// ErrAttemptsExhausted is an exported constant or variable used by the identity engine.
	ErrAttemptsExhausted = errors.New("challenge attempts exhausted")
	// ErrGrantNotFound is an exported constant or variable used by the identity engine.
	ErrGrantNotFound = errors.New("authorization grant not found")
	// ErrCeremonyNotFound is an exported constant or variable used by the identity engine.
	ErrCeremonyNotFound = errors.New("ceremony not found")
	// ErrCeremonyExpired is an exported constant or variable used by the identity engine.
	ErrCeremonyExpired = errors.New("ceremony expired")
	// ErrCeremonyFailed is an exported constant or variable used by the identity engine.
	ErrCeremonyFailed = errors.New("ceremony verification failed")
	// ErrUnknownCredential is an exported constant or variable used by the identity engine.
	ErrUnknownCredential = errors.New("unknown credential")
	// ErrCounterRollback is an exported constant or variable used by the identity engine.
	ErrCounterRollback = errors.New("credential sign counter rollback detected")
	// ErrSessionNotFound is an exported constant or variable used by the identity engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is an exported constant or variable used by the identity engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimited is an exported constant or variable used by the identity engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrBiometricDisabled is an exported constant or variable used by the identity engine.
	ErrBiometricDisabled = errors.New("biometric ceremonies disabled")
	// ErrPasswordResetDisabled is an exported constant or variable used by the identity engine.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrRegistrationDisabled is an exported constant or variable used by the identity engine.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrAccessTokensDisabled is an exported constant or variable used by the identity engine.
	ErrAccessTokensDisabled = errors.New("access tokens disabled")
	// ErrStoreUnavailable is an exported constant or variable used by the identity engine.
	ErrStoreUnavailable = errors.New("backend store unavailable")
	// ErrNotifierFailed is an exported constant or variable used by the identity engine.
	ErrNotifierFailed = errors.New("notification dispatch failed")
	// ErrEngineNotReady is an exported constant or variable used by the identity engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorCategory defines a public type used by goIdentity APIs.
//
// ErrorCategory instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ErrorCategory int

const (
	// CategoryInternal is an exported constant or variable used by the identity engine.
	CategoryInternal ErrorCategory = iota
	// CategoryValidation is an exported constant or variable used by the identity engine.
	CategoryValidation
	// CategoryConflict is an exported constant or variable used by the identity engine.
	CategoryConflict
	// CategoryChallenge is an exported constant or variable used by the identity engine.
	CategoryChallenge
	// CategoryAuthentication is an exported constant or variable used by the identity engine.
	CategoryAuthentication
	// CategoryRateLimit is an exported constant or variable used by the identity engine.
	CategoryRateLimit
)

// Category maps an engine error to its stable outward class. Transport
// adapters switch on the category rather than on individual sentinels, so
// challenge and authentication failures keep their intentionally generic
// messages.
func Category(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryInternal
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrPasswordConfirmMismatch):
		return CategoryValidation
	case errors.Is(err, ErrEmailTaken):
		return CategoryConflict
	case errors.Is(err, ErrNoActiveChallenge),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrGrantNotFound),
		errors.Is(err, ErrCeremonyNotFound),
		errors.Is(err, ErrCeremonyExpired),
		errors.Is(err, ErrCeremonyFailed):
		return CategoryChallenge
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountNotVerified),
		errors.Is(err, ErrUnknownCredential),
		errors.Is(err, ErrCounterRollback),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrUserNotFound):
		return CategoryAuthentication
	case errors.Is(err, ErrAttemptsExhausted),
		errors.Is(err, ErrRateLimited):
		return CategoryRateLimit
	default:
		return CategoryInternal
	}
}
