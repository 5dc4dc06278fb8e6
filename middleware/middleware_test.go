package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newGuardedEngine(t *testing.T, mutate func(*goIdentity.Config)) (*goIdentity.Engine, string) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goIdentity.Config{}
	cfg.Session.RedisPrefix = "mwt"
	cfg.Session.Lifetime = time.Hour
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 32
	cfg.OTP.Digits = 6
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.MaxAttempts = 5
	cfg.Registration.Enabled = true
	cfg.Registration.PendingGrantTTL = 5 * time.Minute
	cfg.Registration.DefaultUserType = "user"
	if mutate != nil {
		mutate(&cfg)
	}

	provider := &mapProvider{byID: map[string]goIdentity.UserRecord{}, byEmail: map[string]string{}}
	notifier := &codeNotifier{}

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	const email, pass = "guard@example.com", "str0ngpass"
	if _, err := engine.Register(ctx, email, pass, pass); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.VerifyOTP(ctx, email, notifier.code(t), goIdentity.PurposeVerify); err != nil {
		t.Fatalf("verify: %v", err)
	}
	login, err := engine.Login(ctx, email, pass)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	return engine, login.Session.Token
}

func echoUserHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := SessionFromContext(r)
		if !ok {
			t.Error("no session in request context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, info.UserID)
	})
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	engine, _ := newGuardedEngine(t, nil)
	handler := RequireSession(engine)(echoUserHandler(t))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer bm90LWEtcmVhbC1zZXNzaW9uLXRva2VuLWF0LWFsbA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireSessionInjectsSession(t *testing.T) {
	engine, token := newGuardedEngine(t, nil)
	handler := RequireSession(engine)(echoUserHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() == "" {
		t.Fatal("handler saw an empty user id")
	}
}

func TestRequireSessionSeesRevocation(t *testing.T) {
	engine, token := newGuardedEngine(t, nil)
	handler := RequireSession(engine)(echoUserHandler(t))

	if err := engine.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after logout = %d, want 401", rec.Code)
	}
}

func TestRequireSessionNilEngine(t *testing.T) {
	handler := RequireSession(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with nil engine")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAccessVerifiesOffline(t *testing.T) {
	engine, token := newGuardedEngine(t, func(cfg *goIdentity.Config) {
		cfg.JWT.Enabled = true
		cfg.JWT.AccessTTL = 5 * time.Minute
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	})
	handler := RequireAccess(engine)(echoUserHandler(t))

	access, err := engine.IssueAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Offline verification does not notice revocation.
	if err := engine.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status after logout = %d, want 200 for unexpired access token", rec.Code)
	}
}

func TestRequireAccessRejectsGarbage(t *testing.T) {
	engine, _ := newGuardedEngine(t, func(cfg *goIdentity.Config) {
		cfg.JWT.Enabled = true
		cfg.JWT.AccessTTL = 5 * time.Minute
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	})
	handler := RequireAccess(engine)(echoUserHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAccessWhenDisabled(t *testing.T) {
	engine, _ := newGuardedEngine(t, nil)
	handler := RequireAccess(engine)(echoUserHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

/*
====================================
TEST DOUBLES
====================================
*/

type codeNotifier struct {
	mu   sync.Mutex
	last string
}

func (n *codeNotifier) SendOTP(_ context.Context, _, code string, _ goIdentity.OTPPurpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = code
	return nil
}

func (n *codeNotifier) code(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == "" {
		t.Fatal("no OTP was sent")
	}
	return n.last
}

type mapProvider struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]goIdentity.UserRecord
	byEmail map[string]string
}

func (p *mapProvider) CreateUser(_ context.Context, input goIdentity.CreateUserInput) (goIdentity.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[input.Email]; exists {
		return goIdentity.UserRecord{}, goIdentity.ErrEmailTaken
	}
	p.seq++
	user := goIdentity.UserRecord{
		ID:           fmt.Sprintf("u-%d", p.seq),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		UserType:     input.UserType,
		CreatedAt:    time.Now().Unix(),
	}
	p.byID[user.ID] = user
	p.byEmail[user.Email] = user.ID
	return user, nil
}

func (p *mapProvider) GetUserByEmail(_ context.Context, email string) (goIdentity.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byEmail[email]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *mapProvider) GetUserByID(_ context.Context, userID string) (goIdentity.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return user, nil
}

func (p *mapProvider) MarkVerified(_ context.Context, userID string) error {
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

func (p *mapProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
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

func (p *mapProvider) DeleteUser(_ context.Context, userID string) error {
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

func (p *mapProvider) BindCredential(_ context.Context, _ goIdentity.BiometricCredential) error {
	return nil
}

func (p *mapProvider) CredentialsFor(_ context.Context, _ string) ([]goIdentity.BiometricCredential, error) {
	return nil, nil
}

func (p *mapProvider) GetCredential(_ context.Context, _ []byte) (goIdentity.BiometricCredential, error) {
	return goIdentity.BiometricCredential{}, goIdentity.ErrUnknownCredential
}

func (p *mapProvider) UpdateCredentialSignCount(_ context.Context, _ []byte, _ uint32) error {
	return nil
}

func (p *mapProvider) FlagCredentialClone(_ context.Context, _ []byte) error {
	return nil
}
