package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-hq/meridian/internal/shared"
)

// TokenStore persists refresh-token records and enforces single-use
// rotation. Consume is the linearization point: of two racing callers
// presenting the same token id, exactly one observes the record.
type TokenStore interface {
	Create(ctx context.Context, rec RefreshTokenRecord) error
	Find(ctx context.Context, id string) (*RefreshTokenRecord, error)
	Consume(ctx context.Context, id string) (*RefreshTokenRecord, error)
	DeleteAllForUser(ctx context.Context, userID int64) error
}

// RedisTokenStore keeps refresh-token records in Redis, one key per record
// with a TTL matching the record expiry, plus a per-user index set used by
// logout-all.
type RedisTokenStore struct {
	client   *redis.Client
	indexTTL time.Duration
}

// NewTokenStore constructs a RedisTokenStore. indexTTL bounds the lifetime
// of the per-user index and must be at least the longest record TTL.
func NewTokenStore(client *redis.Client, indexTTL time.Duration) *RedisTokenStore {
	if indexTTL <= 0 {
		indexTTL = 31 * 24 * time.Hour
	}
	return &RedisTokenStore{client: client, indexTTL: indexTTL}
}

// Create persists a new refresh-token record.
func (s *RedisTokenStore) Create(ctx context.Context, rec RefreshTokenRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return errors.New("tokenstore: record already expired")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(rec.ID), payload, ttl)
	pipe.SAdd(ctx, s.userKey(rec.UserID), rec.ID)
	pipe.Expire(ctx, s.userKey(rec.UserID), s.indexTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tokenstore: create: %w", err)
	}
	return nil
}

// Find returns the record without consuming it, or ErrRefreshTokenInvalid.
func (s *RedisTokenStore) Find(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	payload, err := s.client.Get(ctx, s.tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrRefreshTokenInvalid
		}
		return nil, err
	}
	return s.decode(payload)
}

// Consume atomically fetches and deletes the record (GETDEL). A second
// caller racing on the same id sees ErrRefreshTokenInvalid; there is no
// window in which a deleted record still validates.
func (s *RedisTokenStore) Consume(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	payload, err := s.client.GetDel(ctx, s.tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrRefreshTokenInvalid
		}
		return nil, err
	}
	rec, err := s.decode(payload)
	if err != nil {
		return nil, err
	}
	// Index hygiene only; correctness rests on the GETDEL above.
	_ = s.client.SRem(ctx, s.userKey(rec.UserID), rec.ID).Err()
	return rec, nil
}

// DeleteAllForUser removes every live record owned by the user.
func (s *RedisTokenStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.tokenKey(id))
	}
	pipe.Del(ctx, s.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tokenstore: delete all: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) decode(payload []byte) (*RefreshTokenRecord, error) {
	var rec RefreshTokenRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("tokenstore: decode: %w", err)
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, shared.ErrRefreshTokenInvalid
	}
	return &rec, nil
}

func (s *RedisTokenStore) tokenKey(id string) string {
	return "refresh:token:" + id
}

func (s *RedisTokenStore) userKey(userID int64) string {
	return fmt.Sprintf("refresh:user:%d", userID)
}

var _ TokenStore = (*RedisTokenStore)(nil)
