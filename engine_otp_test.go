package goIdentity

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// wrongCode returns a syntactically valid code guaranteed not to match.
func wrongCode(code string) string {
	if code[0] == '9' {
		return "0" + code[1:]
	}
	return "9" + code[1:]
}

func TestVerifyOTPBurnsAttemptBeforeComparing(t *testing.T) {
	engine, _, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Register(ctx, "cap@example.com", "long-enough-1", "long-enough-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := notifier.lastCode(t)
	bad := wrongCode(code)

	// Five wrong answers exhaust the attempt budget.
	for i := 0; i < 5; i++ {
		if _, err := engine.VerifyOTP(ctx, "cap@example.com", bad, PurposeVerify); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("attempt %d: got %v, want ErrCodeMismatch", i+1, err)
		}
	}

	// The correct code arrives too late: the counter was burned before every
	// comparison, so exhaustion wins.
	if _, err := engine.VerifyOTP(ctx, "cap@example.com", code, PurposeVerify); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("exhausted: got %v, want ErrAttemptsExhausted", err)
	}

	// Exhaustion deleted the challenge entirely.
	if _, err := engine.VerifyOTP(ctx, "cap@example.com", code, PurposeVerify); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("after exhaustion: got %v, want ErrNoActiveChallenge", err)
	}
}

func TestVerifyOTPIsOneShot(t *testing.T) {
	engine, _, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Register(ctx, "once@example.com", "long-enough-1", "long-enough-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := notifier.lastCode(t)

	if _, err := engine.VerifyOTP(ctx, "once@example.com", code, PurposeVerify); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := engine.VerifyOTP(ctx, "once@example.com", code, PurposeVerify); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("replay: got %v, want ErrNoActiveChallenge", err)
	}
}

func TestVerifyOTPSurvivesEarlyMistake(t *testing.T) {
	engine, provider, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Register(ctx, "typo@example.com", "long-enough-1", "long-enough-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := notifier.lastCode(t)

	if _, err := engine.VerifyOTP(ctx, "typo@example.com", wrongCode(code), PurposeVerify); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("mistake: got %v, want ErrCodeMismatch", err)
	}

	result, err := engine.VerifyOTP(ctx, "typo@example.com", code, PurposeVerify)
	if err != nil {
		t.Fatalf("correct code after mistake: %v", err)
	}

	user := provider.userByEmail(t, "typo@example.com")
	if !user.Verified {
		t.Fatal("account not marked verified")
	}
	if result.UserID != user.ID {
		t.Fatalf("result user %q, want %q", result.UserID, user.ID)
	}
	if result.GrantExpiresAt.IsZero() {
		t.Fatal("expected a biometric-bind grant window")
	}
}

func TestVerifyOTPPurposeIsolation(t *testing.T) {
	engine, _, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Register(ctx, "cross@example.com", "long-enough-1", "long-enough-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := notifier.lastCode(t)

	// A verification code is useless against the reset purpose.
	if _, err := engine.VerifyOTP(ctx, "cross@example.com", code, PurposeReset); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("cross purpose: got %v, want ErrNoActiveChallenge", err)
	}

	// And the original challenge is untouched.
	if _, err := engine.VerifyOTP(ctx, "cross@example.com", code, PurposeVerify); err != nil {
		t.Fatalf("original purpose: %v", err)
	}
}

func TestVerifyOTPInputValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.VerifyOTP(ctx, "x@example.com", "", PurposeVerify); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty code: got %v, want ErrInvalidInput", err)
	}
	if _, err := engine.VerifyOTP(ctx, "x@example.com", "123456", OTPPurpose("bogus")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bogus purpose: got %v, want ErrInvalidInput", err)
	}
	if _, err := engine.VerifyOTP(ctx, "nobody@example.com", "123456", PurposeVerify); !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("no challenge: got %v, want ErrNoActiveChallenge", err)
	}
}

func TestIssuedCodesAreNumeric(t *testing.T) {
	engine, _, notifier, _ := newTestEngine(t, func(cfg *Config) {
		cfg.OTP.Digits = 8
	})

	if _, err := engine.Register(context.Background(), "digits@example.com", "long-enough-1", "long-enough-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	code := notifier.lastCode(t)
	if len(code) != 8 {
		t.Fatalf("code length = %d, want 8", len(code))
	}
	if strings.Trim(code, "0123456789") != "" {
		t.Fatalf("code %q contains non-digits", code)
	}
}
