package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	fieldAccess   = "access"
	fieldRefresh  = "refresh"
	fieldIdentity = "identity"

	defaultKey = "analytics:credentials:default"
)

var _ credentials.Store = (*RedisStore)(nil)

// RedisStore keeps the credentials in a single Redis hash. It lets several
// processes on a machine, or a fleet of workers, share one signed-in session.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// New creates a store under key. A zero ttl keeps the hash until cleared.
func New(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Key returns the Redis key holding the credentials.
func (s *RedisStore) Key() string {
	return s.key
}

// Load verifies Redis is reachable; values are always read through.
func (s *RedisStore) Load(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("[redisstore Load] ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, access, refresh string, identity *credentials.Identity) error {
	identityJSON := ""
	if identity != nil {
		data, err := json.Marshal(identity)
		if err != nil {
			return fmt.Errorf("[redisstore Save] marshal identity: %w", err)
		}
		identityJSON = string(data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, fieldAccess, access, fieldRefresh, refresh, fieldIdentity, identityJSON)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore Save] %w", err)
	}
	return nil
}

func (s *RedisStore) SetAccess(ctx context.Context, access string) error {
	if err := s.client.HSet(ctx, s.key, fieldAccess, access).Err(); err != nil {
		return fmt.Errorf("[redisstore SetAccess] %w", err)
	}
	return nil
}

func (s *RedisStore) Access(ctx context.Context) string {
	return s.field(ctx, fieldAccess)
}

func (s *RedisStore) Refresh(ctx context.Context) string {
	return s.field(ctx, fieldRefresh)
}

func (s *RedisStore) Identity(ctx context.Context) *credentials.Identity {
	raw := s.field(ctx, fieldIdentity)
	if raw == "" {
		return nil
	}
	var id credentials.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Discarding unreadable cached identity")
		return nil
	}
	return &id
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("[redisstore Clear] %w", err)
	}
	return nil
}

func (s *RedisStore) field(ctx context.Context, name string) string {
	v, err := s.client.HGet(ctx, s.key, name).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", s.key).Str("field", name).Msg("Credential read failed")
		}
		return ""
	}
	return v
}
