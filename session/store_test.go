package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t testing.TB) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "tst"), mr
}

func testSession(token, userID string, lifetime time.Duration) *Session {
	now := time.Now()
	return &Session{
		Token:     token,
		UserID:    userID,
		UserType:  "user",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}
}

func TestStoreSaveGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("tok-1", "u-1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" || got.UserType != "user" || got.Token != "tok-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("expiry = %d, want %d", got.ExpiresAt, sess.ExpiresAt)
	}
}

func TestStoreGetUnknownToken(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "never-saved"); !errors.Is(err, redis.Nil) {
		t.Fatalf("got %v, want redis.Nil", err)
	}
}

func TestStoreGetTTLExpired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testSession("tok-ttl", "u-1", time.Hour), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	// Expired and unknown are indistinguishable.
	if _, err := store.Get(ctx, "tok-ttl"); !errors.Is(err, redis.Nil) {
		t.Fatalf("got %v, want redis.Nil", err)
	}
}

func TestStoreGetStoredExpiryAuthoritative(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// The record's own expiry is in the past even though the Redis TTL is
	// generous. The stored expiry must win.
	sess := testSession("tok-stale", "u-1", -time.Minute)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Get(ctx, "tok-stale"); !errors.Is(err, redis.Nil) {
		t.Fatalf("got %v, want redis.Nil", err)
	}

	// The lazy delete also cleaned the user index.
	count, err := store.ActiveSessionCount(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("index entries = %d, want 0", count)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testSession("tok-d", "u-1", time.Hour), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Delete(ctx, "tok-d"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "tok-d"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("delete of unknown: %v", err)
	}

	if _, err := store.Get(ctx, "tok-d"); !errors.Is(err, redis.Nil) {
		t.Fatalf("session survived delete: %v", err)
	}
}

func TestStoreDeleteAllForUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token := fmt.Sprintf("tok-a-%d", i)
		if err := store.Save(ctx, testSession(token, "u-a", time.Hour), time.Hour); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := store.Save(ctx, testSession("tok-b", "u-b", time.Hour), time.Hour); err != nil {
		t.Fatalf("save other user: %v", err)
	}

	if err := store.DeleteAllForUser(ctx, "u-a"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Get(ctx, fmt.Sprintf("tok-a-%d", i)); !errors.Is(err, redis.Nil) {
			t.Fatalf("session %d survived: %v", i, err)
		}
	}

	// Other users are untouched.
	if _, err := store.Get(ctx, "tok-b"); err != nil {
		t.Fatalf("unrelated session lost: %v", err)
	}

	total, err := store.SessionCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("store-wide count = %d, want 1", total)
	}
}

func TestStoreDeleteAllForUserEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.DeleteAllForUser(context.Background(), "nobody"); err != nil {
		t.Fatalf("delete all for unknown user: %v", err)
	}
}

func TestStoreCounters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	count, err := store.SessionCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("initial count = %d, %v", count, err)
	}

	if err := store.Save(ctx, testSession("tok-c1", "u-c", time.Hour), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, testSession("tok-c2", "u-c", time.Hour), time.Hour); err != nil {
		t.Fatal(err)
	}

	count, err = store.SessionCount(ctx)
	if err != nil || count != 2 {
		t.Fatalf("count = %d, %v; want 2", count, err)
	}

	perUser, err := store.ActiveSessionCount(ctx, "u-c")
	if err != nil || perUser != 2 {
		t.Fatalf("per-user count = %d, %v; want 2", perUser, err)
	}

	if err := store.Delete(ctx, "tok-c1"); err != nil {
		t.Fatal(err)
	}
	count, err = store.SessionCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count after delete = %d, %v; want 1", count, err)
	}
}

func TestStorePing(t *testing.T) {
	store, mr := newTestStore(t)

	if _, err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mr.Close()
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("ping against closed redis: %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sess := &Session{
		UserID:    "user-123",
		UserType:  "admin",
		CreatedAt: 1700000000,
		ExpiresAt: 1700086400,
	}

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != sess.UserID || got.UserType != sess.UserType ||
		got.CreatedAt != sess.CreatedAt || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("decoded empty input")
	}
	if _, err := Decode([]byte{99, 0, 0}); err == nil {
		t.Fatal("decoded unknown version")
	}
	if _, err := Decode([]byte{1, 200}); err == nil {
		t.Fatal("decoded truncated record")
	}
}

func BenchmarkStoreGet(b *testing.B) {
	store, _ := newTestStore(b)
	ctx := context.Background()

	if err := store.Save(ctx, testSession("tok-bench", "u-bench", time.Hour), time.Hour); err != nil {
		b.Fatalf("save: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.Get(ctx, "tok-bench"); err != nil {
			b.Fatal(err)
		}
	}
}
