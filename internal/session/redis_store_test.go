package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"portfolio/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })
	return sessions, s
}

func owner(id string) store.User {
	return store.User{ID: id, Email: id + "@example.com", DisplayName: "Owner", Role: "owner"}
}

func TestNewRedisStore(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	if err := sessions.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "test-token-hash", owner("user-123"), time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	user, err := sessions.LookupRefreshSession(ctx, "test-token-hash")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if user.ID != "user-123" || user.Role != "owner" || user.Email != "user-123@example.com" {
		t.Errorf("unexpected user %+v", user)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "expired-token", owner("user-456"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	_, err := sessions.LookupRefreshSession(ctx, "expired-token")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestSaveAlreadyExpiredSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	if err := sessions.SaveRefreshSession(context.Background(), "late", owner("u"), time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error for an already expired token")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "token-to-revoke", owner("user-789"), time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("Lookup before revoke failed: %v", err)
	}
	if err := sessions.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "token-to-revoke"); err == nil {
		t.Error("expected error for revoked token, got nil")
	}
	if err := sessions.RevokeRefreshSession(ctx, "non-existent-token"); err != nil {
		t.Errorf("RevokeRefreshSession for non-existent token failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	sessions, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	for _, id := range []string{"user-1", "user-2"} {
		if err := sessions.SaveRefreshSession(ctx, "token-"+id, owner(id), expiresAt); err != nil {
			t.Fatalf("SaveRefreshSession %s failed: %v", id, err)
		}
	}
	if err := sessions.RevokeRefreshSession(ctx, "token-user-1"); err != nil {
		t.Fatalf("Revoke token-user-1 failed: %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "token-user-1"); err == nil {
		t.Error("expected error for revoked token-user-1, got nil")
	}
	user2, err := sessions.LookupRefreshSession(ctx, "token-user-2")
	if err != nil {
		t.Fatalf("Lookup token-user-2 after revoke failed: %v", err)
	}
	if user2.ID != "user-2" {
		t.Errorf("expected user-2 after revoke, got %s", user2.ID)
	}
}

func TestConsumeRefreshSessionIsSingleUse(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := sessions.SaveRefreshSession(ctx, "rotate-me", owner("user-1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	user, err := sessions.ConsumeRefreshSession(ctx, "rotate-me")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if user.ID != "user-1" || user.Role != "owner" {
		t.Errorf("consumed user = %+v", user)
	}
	if mr.Exists(keyPrefix + "rotate-me") {
		t.Error("token key still present after consume")
	}
	if _, err := sessions.ConsumeRefreshSession(ctx, "rotate-me"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second consume: expected ErrNotFound, got %v", err)
	}
}
