package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aiplatform/pkg/platform/sentinel"
)

const defaultKeyPrefix = "aiplatform:session:"

// RedisBackend stores token and user under two keys written in one MULTI.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithKeyPrefix namespaces the keys, e.g. per user profile.
func WithKeyPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithTTL expires both keys together. Zero keeps them indefinitely.
func WithTTL(ttl time.Duration) RedisOption {
	return func(b *RedisBackend) {
		b.ttl = ttl
	}
}

func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBackend) tokenKey() string { return b.prefix + "token" }
func (b *RedisBackend) userKey() string  { return b.prefix + "user" }

func (b *RedisBackend) Load(ctx context.Context) (Session, error) {
	vals, err := b.client.MGet(ctx, b.tokenKey(), b.userKey()).Result()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	token, hasToken := vals[0].(string)
	rawUser, hasUser := vals[1].(string)
	if !hasToken && !hasUser {
		return Session{}, sentinel.ErrNotFound
	}
	if !hasToken || !hasUser {
		return Session{}, fmt.Errorf("partial session in redis: %w", sentinel.ErrCorrupt)
	}

	s := Session{Token: token}
	if err := json.Unmarshal([]byte(rawUser), &s.User); err != nil || s.User == nil {
		return Session{}, fmt.Errorf("decode session user: %w", sentinel.ErrCorrupt)
	}
	return s, nil
}

func (b *RedisBackend) Save(ctx context.Context, s Session) error {
	rawUser, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.tokenKey(), s.Token, b.ttl)
		pipe.Set(ctx, b.userKey(), rawUser, b.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context) error {
	if err := b.client.Del(ctx, b.tokenKey(), b.userKey()).Err(); err != nil {
		return fmt.Errorf("delete session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
