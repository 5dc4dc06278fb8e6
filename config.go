package goIdentity

import (
	"errors"
	"time"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session       SessionConfig
	Password      PasswordConfig
	OTP           OTPConfig
	Registration  RegistrationConfig
	PasswordReset PasswordResetConfig
	Login         LoginConfig
	Biometric     BiometricConfig
	JWT           JWTConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goIdentity APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// Lifetime is the absolute session lifetime. Sessions never slide; a
	// session issued at T is invalid at T+Lifetime regardless of activity.
	Lifetime time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goIdentity APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by goIdentity APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	// IssueWindow and MaxIssuesPerWindow bound challenge issuance per email
	// (and per IP when enabled), independent of the per-challenge attempt cap.
	IssueWindow         time.Duration
	MaxIssuesPerWindow  int
	EnableEmailThrottle bool
	EnableIPThrottle    bool
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by goIdentity APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	Enabled bool
	// PendingGrantTTL is the post-verification window during which the new
	// account may bind a biometric credential without re-authentication.
	PendingGrantTTL time.Duration
	DefaultUserType string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by goIdentity APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled     bool
	GrantTTL    time.Duration
	MaxAttempts int
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig defines a public type used by goIdentity APIs.
//
// LoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

/*
====================================
BIOMETRIC CONFIG
====================================
*/

// BiometricConfig defines a public type used by goIdentity APIs.
//
// BiometricConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BiometricConfig struct {
	Enabled       bool
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	CeremonyTTL   time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by goIdentity APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goIdentity APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goIdentity APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "ids",
			Lifetime:    24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		OTP: OTPConfig{
			Digits:              6,
			TTL:                 10 * time.Minute,
			MaxAttempts:         5,
			IssueWindow:         10 * time.Minute,
			MaxIssuesPerWindow:  3,
			EnableEmailThrottle: true,
			EnableIPThrottle:    false,
		},
		Registration: RegistrationConfig{
			Enabled:         true,
			PendingGrantTTL: 5 * time.Minute,
			DefaultUserType: "user",
		},
		PasswordReset: PasswordResetConfig{
			Enabled:     true,
			GrantTTL:    10 * time.Minute,
			MaxAttempts: 5,
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: false,
		},
		Biometric: BiometricConfig{
			Enabled:     false,
			CeremonyTTL: 5 * time.Minute,
		},
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Biometric.RPOrigins = append([]string(nil), cfg.Biometric.RPOrigins...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	// Password
	if c.Password.Memory < 8192 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("OTP MaxAttempts must be >= 1")
	}
	if c.OTP.EnableEmailThrottle || c.OTP.EnableIPThrottle {
		if c.OTP.IssueWindow <= 0 {
			return errors.New("OTP IssueWindow must be > 0 when issue throttling is enabled")
		}
		if c.OTP.MaxIssuesPerWindow < 1 {
			return errors.New("OTP MaxIssuesPerWindow must be >= 1 when issue throttling is enabled")
		}
	}

	// Registration
	if c.Registration.Enabled && c.Registration.PendingGrantTTL <= 0 {
		return errors.New("Registration PendingGrantTTL must be > 0")
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.GrantTTL <= 0 {
			return errors.New("PasswordReset GrantTTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts < 1 {
			return errors.New("PasswordReset MaxAttempts must be >= 1")
		}
	}

	// Login throttling
	if c.Login.MaxAttempts < 0 {
		return errors.New("Login MaxAttempts must be >= 0")
	}
	if c.Login.MaxAttempts > 0 && c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0 when MaxAttempts is set")
	}

	// Biometric
	if c.Biometric.Enabled {
		if c.Biometric.RPID == "" {
			return errors.New("Biometric RPID is required")
		}
		if c.Biometric.RPDisplayName == "" {
			return errors.New("Biometric RPDisplayName is required")
		}
		if len(c.Biometric.RPOrigins) == 0 {
			return errors.New("Biometric RPOrigins is required")
		}
		if c.Biometric.CeremonyTTL <= 0 {
			return errors.New("Biometric CeremonyTTL must be > 0")
		}
	}

	// JWT
	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT AccessTTL must be > 0")
		}
		switch c.JWT.SigningMethod {
		case "ed25519":
			if len(c.JWT.PrivateKey) == 0 {
				return errors.New("ed25519 requires PrivateKey")
			}
			if len(c.JWT.PublicKey) == 0 {
				return errors.New("ed25519 requires PublicKey")
			}
		case "hs256":
			if len(c.JWT.PrivateKey) == 0 {
				return errors.New("hs256 requires PrivateKey")
			}
		default:
			return errors.New("unsupported JWT signing method")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("Audit BufferSize must be >= 1")
	}

	return nil
}
