package goIdentity

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero session lifetime", func(c *Config) { c.Session.Lifetime = 0 }, "Lifetime"},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero argon time", func(c *Config) { c.Password.Time = 0 }, "Time"},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, "SaltLength"},
		{"too few digits", func(c *Config) { c.OTP.Digits = 4 }, "Digits"},
		{"too many digits", func(c *Config) { c.OTP.Digits = 12 }, "Digits"},
		{"zero otp ttl", func(c *Config) { c.OTP.TTL = 0 }, "TTL"},
		{"zero otp attempts", func(c *Config) { c.OTP.MaxAttempts = 0 }, "MaxAttempts"},
		{"throttle without window", func(c *Config) { c.OTP.IssueWindow = 0 }, "IssueWindow"},
		{"zero pending grant ttl", func(c *Config) { c.Registration.PendingGrantTTL = 0 }, "PendingGrantTTL"},
		{"zero reset grant ttl", func(c *Config) { c.PasswordReset.GrantTTL = 0 }, "GrantTTL"},
		{"login attempts without cooldown", func(c *Config) { c.Login.Cooldown = 0 }, "Cooldown"},
		{"biometric without rpid", func(c *Config) {
			c.Biometric.Enabled = true
			c.Biometric.RPDisplayName = "Example"
			c.Biometric.RPOrigins = []string{"https://example.com"}
		}, "RPID"},
		{"jwt without keys", func(c *Config) {
			c.JWT.Enabled = true
		}, "PrivateKey"},
		{"jwt unknown method", func(c *Config) {
			c.JWT.Enabled = true
			c.JWT.SigningMethod = "rs512"
		}, "signing method"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestCloneConfigIsolation(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("secret-key-material")
	cfg.Biometric.RPOrigins = []string{"https://a.example.com"}

	cloned := cloneConfig(cfg)

	cfg.JWT.PrivateKey[0] = 'X'
	cfg.Biometric.RPOrigins[0] = "https://evil.example.com"

	if cloned.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares private key backing array")
	}
	if cloned.Biometric.RPOrigins[0] != "https://a.example.com" {
		t.Fatal("clone shares origins backing array")
	}
}

func TestLoginThrottlingCanBeDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Login.MaxAttempts = 0
	cfg.Login.Cooldown = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled login throttle rejected: %v", err)
	}
	cfg.Session.Lifetime = time.Hour
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}
