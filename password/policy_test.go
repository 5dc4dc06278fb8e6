package password

import (
	"errors"
	"testing"
)

func TestCheckPolicy(t *testing.T) {
	valid := []string{
		"abcdefghi1",
		"1abcdefghi",
		"passw0rd-long",
		"пароль-599x", // multibyte letters still count as letters
	}
	for _, pass := range valid {
		if err := CheckPolicy(pass); err != nil {
			t.Errorf("CheckPolicy(%q) = %v, want nil", pass, err)
		}
	}

	invalid := []string{
		"",
		"short1a",
		"lettersonly",
		"1234567890",
		"         1", // digit but no letter
	}
	for _, pass := range invalid {
		if err := CheckPolicy(pass); !errors.Is(err, ErrPolicy) {
			t.Errorf("CheckPolicy(%q) = %v, want ErrPolicy", pass, err)
		}
	}
}

func TestCheckPolicyCountsBytesNotRunes(t *testing.T) {
	// Nine runes, but well over ten bytes.
	if err := CheckPolicy("αααααα審査1"); err != nil {
		t.Fatalf("multibyte password rejected: %v", err)
	}
}
