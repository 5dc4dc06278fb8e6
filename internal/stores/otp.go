package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpRecordVersionV1 = 1
)

// Purpose discriminates the two OTP challenge kinds sharing one store.
type Purpose byte

const (
	PurposeVerify Purpose = 1
	PurposeReset  Purpose = 2
)

var (
	ErrOTPNotFound          = errors.New("otp challenge not found")
	ErrOTPExpired           = errors.New("otp challenge expired")
	ErrOTPCodeMismatch      = errors.New("otp code mismatch")
	ErrOTPAttemptsExhausted = errors.New("otp attempts exhausted")
	ErrOTPRedisUnavailable  = errors.New("otp redis unavailable")
)

// consumeOTPLua atomically performs GET→decrement→compare→DEL/SET on an OTP
// record. The remaining-attempt counter is decremented and persisted BEFORE
// the code comparison, so a race between two verify calls can never yield two
// successes past the cap, and a correct code on an exhausted challenge still
// fails.
//
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = expected purpose (byte)
// ARGV[3] = current unix timestamp (int string)
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "expired", "attempts_exhausted", "code_mismatch"
var consumeOTPLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local expectedPurpose = tonumber(ARGV[2])
local nowUnix = tonumber(ARGV[3])

-- Minimal binary decode: version(1) purpose(1) attempts(2 big-endian) expiresAt(8 big-endian) ...
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local purpose = string.byte(data, 2)
if purpose ~= expectedPurpose then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local a0 = string.byte(data, 3)
local a1 = string.byte(data, 4)
local attempts = a0 * 256 + a1

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 5, 12)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

if attempts == 0 then
  redis.call('DEL', KEYS[1])
  return {err='attempts_exhausted'}
end

attempts = attempts - 1
local newA0 = math.floor(attempts / 256)
local newA1 = attempts % 256
local newData = string.sub(data, 1, 2) .. string.char(newA0, newA1) .. string.sub(data, 5)

local userIDLen = string.byte(data, 13) * 256 + string.byte(data, 14)
local hashOffset = 15 + userIDLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='expired'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='code_mismatch'}
end

redis.call('DEL', KEYS[1])
return newData
`)

// OTPRecord is the persisted state of one challenge. Attempts counts verify
// calls still allowed, not calls already made.
type OTPRecord struct {
	UserID    string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
	Purpose   Purpose
}

// OTPStore persists at most one active challenge per (email, purpose) pair.
// Saving over an existing key invalidates the prior challenge.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "idn"
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OTPStore) key(email string, purpose Purpose) string {
	return fmt.Sprintf("%s:otp:%d:%s", s.prefix, purpose, email)
}

func (s *OTPStore) Save(
	ctx context.Context,
	email string,
	record *OTPRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email, record.Purpose), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	return nil
}

func (s *OTPStore) Consume(
	ctx context.Context,
	email string,
	purpose Purpose,
	providedHash [32]byte,
) (*OTPRecord, error) {
	key := s.key(email, purpose)
	nowUnix := time.Now().Unix()

	result, err := consumeOTPLua.Run(ctx, s.redis,
		[]string{key},
		string(providedHash[:]),
		int(purpose),
		nowUnix,
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrOTPNotFound
		case "expired":
			return nil, ErrOTPExpired
		case "attempts_exhausted":
			return nil, ErrOTPAttemptsExhausted
		case "code_mismatch":
			return nil, ErrOTPCodeMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrOTPRedisUnavailable)
	}

	record, decErr := decodeOTPRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, decErr)
	}

	// Final constant-time comparison in Go as defense-in-depth
	// (Lua already checked, but Lua string comparison is not constant-time)
	if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
		return nil, ErrOTPCodeMismatch
	}

	return record, nil
}

// Delete drops any active challenge for the pair. Used when a flow is
// abandoned or superseded.
func (s *OTPStore) Delete(ctx context.Context, email string, purpose Purpose) error {
	if err := s.redis.Del(ctx, s.key(email, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	buf.WriteByte(byte(record.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("otp record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &OTPRecord{
		Purpose: Purpose(purpose),
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
