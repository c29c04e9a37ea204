// Package session keeps owner refresh tokens. Tokens are stored by hash and are
// single use: a refresh consumes the old token before a new one is issued.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio/api/internal/store"
)

const keyPrefix = "portfolio:refresh:"

// refreshRecord is the value stored under a token hash.
type refreshRecord struct {
	UserID   string    `json:"uid"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	IssuedAt time.Time `json:"iat"`
}

func newRecord(user store.User, now time.Time) refreshRecord {
	return refreshRecord{UserID: user.ID, Email: user.Email, Name: user.DisplayName, Role: user.Role, IssuedAt: now}
}

func (r refreshRecord) user() store.User {
	return store.User{ID: r.UserID, Email: r.Email, DisplayName: r.Name, Role: r.Role}
}

// RedisStore shares refresh tokens between API instances.
type RedisStore struct {
	client *redis.Client
}

// Connect parses redisURL and checks the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	client, err := Connect(context.Background(), redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient shares a client opened elsewhere; Close closes it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save refresh token: already expired at %s", expiresAt.Format(time.RFC3339))
	}
	payload, err := json.Marshal(newRecord(user, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return s.read(s.client.Get(ctx, keyPrefix+tokenHash))
}

// ConsumeRefreshSession reads and deletes the token in one command, so two
// concurrent refreshes with the same token cannot both succeed.
func (s *RedisStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return s.read(s.client.GetDel(ctx, keyPrefix+tokenHash))
}

func (s *RedisStore) read(cmd *redis.StringCmd) (store.User, error) {
	payload, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return store.User{}, fmt.Errorf("refresh token: %w", store.ErrNotFound)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("read refresh token: %w", err)
	}
	var record refreshRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return store.User{}, fmt.Errorf("decode refresh token: %w", err)
	}
	return record.user(), nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
