//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIntegrationEngine(t *testing.T, mutate func(*goIdentity.Config)) (*goIdentity.Engine, *memoryProvider, *captureNotifier, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := fastConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	provider := newMemoryProvider()
	notifier := &captureNotifier{}

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	return engine, provider, notifier, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// fastConfig lowers argon2 cost so integration runs stay quick.
func fastConfig() goIdentity.Config {
	cfg := goIdentity.Config{}
	cfg = defaultsFor(cfg)
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func defaultsFor(cfg goIdentity.Config) goIdentity.Config {
	cfg.Session.RedisPrefix = "ids"
	cfg.Session.Lifetime = 24 * time.Hour
	cfg.Password.Memory = 65536
	cfg.Password.Time = 3
	cfg.Password.Parallelism = 2
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 32
	cfg.Password.UpgradeOnLogin = true
	cfg.OTP.Digits = 6
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.MaxAttempts = 5
	cfg.OTP.IssueWindow = 10 * time.Minute
	cfg.OTP.MaxIssuesPerWindow = 3
	cfg.OTP.EnableEmailThrottle = true
	cfg.Registration.Enabled = true
	cfg.Registration.PendingGrantTTL = 5 * time.Minute
	cfg.Registration.DefaultUserType = "user"
	cfg.PasswordReset.Enabled = true
	cfg.PasswordReset.GrantTTL = 10 * time.Minute
	cfg.PasswordReset.MaxAttempts = 5
	cfg.Login.MaxAttempts = 5
	cfg.Login.Cooldown = 15 * time.Minute
	return cfg
}

type captureNotifier struct {
	mu    sync.Mutex
	sends []sentOTP
}

type sentOTP struct {
	Email   string
	Code    string
	Purpose goIdentity.OTPPurpose
}

func (n *captureNotifier) SendOTP(_ context.Context, email, code string, purpose goIdentity.OTPPurpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, sentOTP{Email: email, Code: code, Purpose: purpose})
	return nil
}

func (n *captureNotifier) last(t *testing.T) sentOTP {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		t.Fatal("no OTP was sent")
	}
	return n.sends[len(n.sends)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

type memoryProvider struct {
	mu          sync.RWMutex
	seq         int
	byID        map[string]goIdentity.UserRecord
	byEmail     map[string]string
	credentials map[string]goIdentity.BiometricCredential
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		byID:        map[string]goIdentity.UserRecord{},
		byEmail:     map[string]string{},
		credentials: map[string]goIdentity.BiometricCredential{},
	}
}

func (p *memoryProvider) CreateUser(_ context.Context, input goIdentity.CreateUserInput) (goIdentity.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[input.Email]; exists {
		return goIdentity.UserRecord{}, goIdentity.ErrEmailTaken
	}

	p.seq++
	user := goIdentity.UserRecord{
		ID:           fmt.Sprintf("user-%d", p.seq),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		UserType:     input.UserType,
		CreatedAt:    time.Now().Unix(),
	}
	p.byID[user.ID] = user
	p.byEmail[user.Email] = user.ID
	return user, nil
}

func (p *memoryProvider) GetUserByEmail(_ context.Context, email string) (goIdentity.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[email]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *memoryProvider) GetUserByID(_ context.Context, userID string) (goIdentity.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.byID[userID]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return user, nil
}

func (p *memoryProvider) MarkVerified(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	user.Verified = true
	p.byID[userID] = user
	return nil
}

func (p *memoryProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	user.PasswordHash = hash
	p.byID[userID] = user
	return nil
}

func (p *memoryProvider) DeleteUser(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	delete(p.byEmail, user.Email)
	delete(p.byID, userID)
	return nil
}

func (p *memoryProvider) BindCredential(_ context.Context, credential goIdentity.BiometricCredential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credentials[string(credential.CredentialID)] = credential
	return nil
}

func (p *memoryProvider) CredentialsFor(_ context.Context, userID string) ([]goIdentity.BiometricCredential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []goIdentity.BiometricCredential
	for _, cred := range p.credentials {
		if cred.UserID == userID {
			out = append(out, cred)
		}
	}
	return out, nil
}

func (p *memoryProvider) GetCredential(_ context.Context, credentialID []byte) (goIdentity.BiometricCredential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cred, ok := p.credentials[string(credentialID)]
	if !ok {
		return goIdentity.BiometricCredential{}, goIdentity.ErrUnknownCredential
	}
	return cred, nil
}

func (p *memoryProvider) UpdateCredentialSignCount(_ context.Context, credentialID []byte, signCount uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, ok := p.credentials[string(credentialID)]
	if !ok {
		return goIdentity.ErrUnknownCredential
	}
	cred.SignCount = signCount
	p.credentials[string(credentialID)] = cred
	return nil
}

func (p *memoryProvider) FlagCredentialClone(_ context.Context, credentialID []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, ok := p.credentials[string(credentialID)]
	if !ok {
		return goIdentity.ErrUnknownCredential
	}
	cred.CloneFlagged = true
	p.credentials[string(credentialID)] = cred
	return nil
}
