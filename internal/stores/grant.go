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
	pendingRecordVersionV1    = 1
	resetGrantRecordVersionV1 = 1
)

var (
	ErrGrantNotFound          = errors.New("grant not found")
	ErrGrantCodeMismatch      = errors.New("grant code mismatch")
	ErrGrantAttemptsExhausted = errors.New("grant attempts exhausted")
	ErrGrantRedisUnavailable  = errors.New("grant redis unavailable")
)

// PendingRegistrationRecord authorizes exactly one biometric-bind ceremony
// after a successful verification OTP, without re-authentication.
type PendingRegistrationRecord struct {
	Email     string
	ExpiresAt int64
}

// ResetGrantRecord is minted when a reset OTP is verified ahead of the
// password rewrite. It carries its own attempt budget, independent of the
// consumed challenge's.
type ResetGrantRecord struct {
	UserID    string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// GrantStore persists the two single-use post-OTP grants. Pending
// registration grants are keyed by userID and consumed with GETDEL; reset
// grants are keyed by email and mutated under WATCH so concurrent attempts
// cannot share one decrement.
type GrantStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewGrantStore(redisClient redis.UniversalClient, prefix string) *GrantStore {
	if prefix == "" {
		prefix = "idn"
	}
	return &GrantStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *GrantStore) pendingKey(userID string) string {
	return s.prefix + ":pend:" + userID
}

func (s *GrantStore) resetKey(email string) string {
	return s.prefix + ":rgrant:" + email
}

func (s *GrantStore) SavePending(
	ctx context.Context,
	userID string,
	record *PendingRegistrationRecord,
	ttl time.Duration,
) error {
	encoded, err := encodePendingRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.pendingKey(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGrantRedisUnavailable, err)
	}

	return nil
}

// ConsumePending removes and returns the pending-registration grant in one
// round-trip. A second consume for the same user fails with ErrGrantNotFound.
func (s *GrantStore) ConsumePending(ctx context.Context, userID string) (*PendingRegistrationRecord, error) {
	data, err := s.redis.GetDel(ctx, s.pendingKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrGrantRedisUnavailable, err)
	}

	record, err := decodePendingRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrantRedisUnavailable, err)
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrGrantNotFound
	}

	return record, nil
}

func (s *GrantStore) SaveResetGrant(
	ctx context.Context,
	email string,
	record *ResetGrantRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeResetGrantRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.resetKey(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGrantRedisUnavailable, err)
	}

	return nil
}

// ConsumeResetGrant validates the provided hash against the stored grant.
// The attempt counter is decremented and persisted before the comparison;
// reaching zero deletes the grant and the flow falls back to the start.
// On match the grant is deleted — success is one-shot.
func (s *GrantStore) ConsumeResetGrant(
	ctx context.Context,
	email string,
	providedHash [32]byte,
) (*ResetGrantRecord, error) {
	const maxRetries = 4
	key := s.resetKey(email)

	for i := 0; i < maxRetries; i++ {
		var matched *ResetGrantRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetGrantRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrGrantNotFound
			}

			if record.Attempts == 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrGrantAttemptsExhausted
			}

			record.Attempts--

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				ttl, ttlErr := tx.PTTL(ctx, key).Result()
				if ttlErr != nil {
					return ttlErr
				}
				if ttl <= 0 {
					return ErrGrantNotFound
				}

				updated, encErr := encodeResetGrantRecord(record)
				if encErr != nil {
					return encErr
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrGrantCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		switch {
		case err == nil:
			return matched, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return nil, ErrGrantNotFound
		case errors.Is(err, ErrGrantNotFound),
			errors.Is(err, ErrGrantCodeMismatch),
			errors.Is(err, ErrGrantAttemptsExhausted):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", ErrGrantRedisUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w: consume contention retries exceeded", ErrGrantRedisUnavailable)
}

func encodePendingRecord(record *PendingRegistrationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(pendingRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Email) > 65535 {
		return nil, errors.New("pending record email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)

	return buf.Bytes(), nil
}

func decodePendingRecord(data []byte) (*PendingRegistrationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingRecordVersionV1 {
		return nil, errors.New("invalid pending record version")
	}

	record := &PendingRegistrationRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}

	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	return record, nil
}

func encodeResetGrantRecord(record *ResetGrantRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetGrantRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset grant user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeResetGrantRecord(data []byte) (*ResetGrantRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetGrantRecordVersionV1 {
		return nil, errors.New("invalid reset grant record version")
	}

	record := &ResetGrantRecord{}
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
