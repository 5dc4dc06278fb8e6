package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goIdentity APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider UserProvider
	notifier     Notifier
	auditSink    AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider may return an error when input validation, dependency calls, or security checks fail.
// WithUserProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
//
// WithNotifier may return an error when input validation, dependency calls, or security checks fail.
// WithNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// Precomputed once so unknown-email logins burn the same argon2 cost as
	// real ones.
	dummyHash, err := hasher.DummyHash()
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	prefix := cfg.Session.RedisPrefix

	sessionStore := session.NewStore(b.redis, prefix)
	otpStore := stores.NewOTPStore(b.redis, prefix)
	grantStore := stores.NewGrantStore(b.redis, prefix)
	ceremonyStore := stores.NewCeremonyStore(b.redis, prefix)

	// -------- LIMITERS --------
	var otpLimiter *limiters.OTPLimiter
	if cfg.OTP.EnableEmailThrottle || cfg.OTP.EnableIPThrottle {
		otpLimiter = limiters.NewOTPLimiter(b.redis, limiters.OTPConfig{
			EnableEmailThrottle: cfg.OTP.EnableEmailThrottle,
			EnableIPThrottle:    cfg.OTP.EnableIPThrottle,
			Window:              cfg.OTP.IssueWindow,
			MaxRequests:         cfg.OTP.MaxIssuesPerWindow,
		})
	}

	var loginLimiter *limiters.LoginLimiter
	if cfg.Login.MaxAttempts > 0 {
		loginLimiter = limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
			EnableIPThrottle: cfg.Login.EnableIPThrottle,
			MaxAttempts:      cfg.Login.MaxAttempts,
			Cooldown:         cfg.Login.Cooldown,
		})
	}

	// -------- WEBAUTHN --------
	var webauthnProvider ceremonyProvider
	if cfg.Biometric.Enabled {
		wa, err := webauthn.New(&webauthn.Config{
			RPDisplayName: cfg.Biometric.RPDisplayName,
			RPID:          cfg.Biometric.RPID,
			RPOrigins:     cfg.Biometric.RPOrigins,
		})
		if err != nil {
			return nil, err
		}
		webauthnProvider = wa
	}

	// -------- JWT --------
	var jwtManager *jwt.Manager
	if cfg.JWT.Enabled {
		jwtManager, err = jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cfg.JWT.PrivateKey,
			PublicKey:     cfg.JWT.PublicKey,
			Issuer:        cfg.JWT.Issuer,
			Leeway:        cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NoOpAuditSink{}
	}
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	b.built = true

	return &Engine{
		config:        cfg,
		userProvider:  b.userProvider,
		notifier:      b.notifier,
		sessionStore:  sessionStore,
		otpStore:      otpStore,
		grantStore:    grantStore,
		ceremonyStore: ceremonyStore,
		otpLimiter:    otpLimiter,
		loginLimiter:  loginLimiter,
		hasher:        hasher,
		dummyHash:     dummyHash,
		webauthn:      webauthnProvider,
		parser:        protocolParser{},
		jwtManager:    jwtManager,
		audit:         dispatcher,
		metrics:       NewMetrics(cfg.Metrics),
	}, nil
}
