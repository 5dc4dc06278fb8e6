package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

const (
	sessionTokenSize = 32
	ceremonyIDSize   = 16
)

// SessionToken is the raw form of an opaque session credential. Clients only
// ever see the encoded form (base64url, no padding); the server stores session
// state keyed by it.
type SessionToken [sessionTokenSize]byte

func NewSessionToken() (SessionToken, error) {
	var token SessionToken
	_, err := rand.Read(token[:])
	return token, err
}

func (t SessionToken) Bytes() []byte {
	return t[:]
}

func (t SessionToken) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseSessionToken(token string) (SessionToken, error) {
	var parsed SessionToken

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return parsed, err
	}
	if len(raw) != len(parsed) {
		return parsed, errors.New("invalid session token size")
	}

	copy(parsed[:], raw)
	return parsed, nil
}

// CeremonyID correlates the begin and finish halves of a WebAuthn ceremony.
type CeremonyID [ceremonyIDSize]byte

func NewCeremonyID() (CeremonyID, error) {
	var id CeremonyID
	_, err := rand.Read(id[:])
	return id, err
}

func (c CeremonyID) String() string {
	return base64.RawURLEncoding.EncodeToString(c[:])
}

func ParseCeremonyID(id string) (CeremonyID, error) {
	var parsed CeremonyID

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return parsed, err
	}
	if len(raw) != len(parsed) {
		return parsed, errors.New("invalid ceremony id size")
	}

	copy(parsed[:], raw)
	return parsed, nil
}

// NewOTP draws a uniform random code over the full fixed digit-length space
// (a 6-digit code covers 000000–999999). A single draw avoids per-digit bias
// and never derives from user data.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	space := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", err
	}

	otp := fmt.Sprintf("%0*d", digits, n)
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashCode reduces a challenge code to the 32-byte digest persisted in Redis.
// Plaintext codes are never stored server-side.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
