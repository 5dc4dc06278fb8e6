package goIdentity

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/goIdentity/internal/audit"
)

// OTPPurpose defines a public type used by goIdentity APIs.
//
// OTPPurpose instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPPurpose string

const (
	// PurposeVerify is an exported constant or variable used by the identity engine.
	PurposeVerify OTPPurpose = "verify"
	// PurposeReset is an exported constant or variable used by the identity engine.
	PurposeReset OTPPurpose = "reset"
)

// UserRecord defines a public type used by goIdentity APIs.
//
// UserRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	UserType     string
	Verified     bool
	CreatedAt    int64
}

// CreateUserInput defines a public type used by goIdentity APIs.
//
// CreateUserInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	UserType     string
}

// BiometricCredential defines a public type used by goIdentity APIs.
//
// BiometricCredential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BiometricCredential struct {
	UserID       string
	CredentialID []byte
	SignCount    uint32
	CloneFlagged bool
	// CredentialJSON is the serialized authenticator credential as produced
	// by the ceremony layer. Providers persist it opaquely and return it
	// byte-for-byte.
	CredentialJSON []byte
	CreatedAt      int64
}

// UserProvider is the caller-supplied durable account backend. The engine
// never owns user rows; it drives this contract and stores only ephemeral
// security state itself.
//
// Implementations must return [ErrUserNotFound] for unknown users,
// [ErrEmailTaken] from CreateUser on a duplicate email, and
// [ErrUnknownCredential] for unknown credential IDs. Any other error is
// treated as a backend failure and surfaced wrapped in [ErrStoreUnavailable].
type UserProvider interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	MarkVerified(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	DeleteUser(ctx context.Context, userID string) error

	BindCredential(ctx context.Context, credential BiometricCredential) error
	CredentialsFor(ctx context.Context, userID string) ([]BiometricCredential, error)
	GetCredential(ctx context.Context, credentialID []byte) (BiometricCredential, error)
	UpdateCredentialSignCount(ctx context.Context, credentialID []byte, signCount uint32) error
	FlagCredentialClone(ctx context.Context, credentialID []byte) error
}

// Notifier delivers OTP codes out of band. Exactly one SendOTP call is made
// per issued challenge; a SendOTP error aborts the issuing operation.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string, purpose OTPPurpose) error
}

// SessionInfo defines a public type used by goIdentity APIs.
//
// SessionInfo instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionInfo struct {
	Token     string
	UserID    string
	UserType  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RegistrationResult defines a public type used by goIdentity APIs.
//
// RegistrationResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationResult struct {
	UserID             string
	ChallengeExpiresAt time.Time
}

// VerifyOTPResult defines a public type used by goIdentity APIs.
//
// VerifyOTPResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyOTPResult struct {
	UserID  string
	Purpose OTPPurpose
	// GrantExpiresAt reports when the follow-up grant lapses: the
	// biometric-bind window after a verification OTP, or the reset grant
	// after a reset OTP.
	GrantExpiresAt time.Time
}

// LoginResult defines a public type used by goIdentity APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	Session       SessionInfo
	UserID        string
	UserType      string
	UsedBiometric bool
	// CredentialID is set on biometric logins only, base64url without padding.
	CredentialID string
}

// BiometricOptions defines a public type used by goIdentity APIs.
//
// BiometricOptions instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BiometricOptions struct {
	CeremonyID string
	// OptionsJSON is the CredentialCreationOptions or CredentialRequestOptions
	// document to hand to the browser, already serialized.
	OptionsJSON []byte
	ExpiresAt   time.Time
}

// AuditEvent is the event model delivered to audit sinks.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink

// NoOpAuditSink drops all audit events.
type NoOpAuditSink = audit.NoOpSink

// ChannelAuditSink buffers audit events on a channel for consumer-side draining.
type ChannelAuditSink = audit.ChannelSink

// NewChannelAuditSink describes the newchannelauditsink operation and its observable behavior.
//
// NewChannelAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink describes the newjsonauditsink operation and its observable behavior.
//
// NewJSONAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONAuditSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
