package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CeremonyKind discriminates registration from login ceremony state.
type CeremonyKind string

const (
	CeremonyRegistration CeremonyKind = "registration"
	CeremonyLogin        CeremonyKind = "login"
)

var (
	ErrCeremonyNotFound         = errors.New("ceremony not found")
	ErrCeremonyExpired          = errors.New("ceremony expired")
	ErrCeremonyKindMismatch     = errors.New("ceremony kind mismatch")
	ErrCeremonyRedisUnavailable = errors.New("ceremony redis unavailable")
)

// CeremonyRecord holds the server half of an in-flight WebAuthn ceremony:
// the library session data (challenge, allowed credentials, user handle)
// serialized as JSON, plus the kind and the user the ceremony is bound to.
// Login ceremonies for discoverable credentials carry an empty UserID.
type CeremonyRecord struct {
	Kind        CeremonyKind `json:"kind"`
	UserID      string       `json:"user_id,omitempty"`
	SessionJSON []byte       `json:"session"`
	ExpiresAt   int64        `json:"expires_at"`
}

// CeremonyStore persists ceremony records keyed by an ephemeral ceremony ID.
// Consume is GETDEL: one challenge authorizes exactly one finish attempt,
// successful or not.
type CeremonyStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCeremonyStore(redisClient redis.UniversalClient, prefix string) *CeremonyStore {
	if prefix == "" {
		prefix = "idn"
	}
	return &CeremonyStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CeremonyStore) key(ceremonyID string) string {
	return s.prefix + ":cer:" + ceremonyID
}

func (s *CeremonyStore) Save(
	ctx context.Context,
	ceremonyID string,
	record *CeremonyRecord,
	ttl time.Duration,
) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(ceremonyID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCeremonyRedisUnavailable, err)
	}

	return nil
}

func (s *CeremonyStore) Consume(
	ctx context.Context,
	ceremonyID string,
	expectedKind CeremonyKind,
) (*CeremonyRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(ceremonyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCeremonyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCeremonyRedisUnavailable, err)
	}

	record := &CeremonyRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyRedisUnavailable, err)
	}

	if record.Kind != expectedKind {
		return nil, ErrCeremonyKindMismatch
	}
	// The embedded expiry is authoritative even when the redis TTL has not
	// fired yet. The record is already gone either way (GETDEL above).
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrCeremonyExpired
	}

	return record, nil
}
