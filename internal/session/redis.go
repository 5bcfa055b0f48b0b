package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-cli/internal/model"
)

// RedisConfig holds connection settings for the redis session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on redis. Each profile is a JSON string that
// expires ttl after it was written.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client for cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// NewRedisStore wraps client. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return eris.Wrap(err, "session: redis ping")
	}
	return nil
}

func (s *RedisStore) SaveProfile(ctx context.Context, sessionID string, profile model.CompanyProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "session: marshal profile")
	}
	if err := s.client.Set(ctx, profileKey(sessionID), data, s.ttl).Err(); err != nil {
		return eris.Wrapf(err, "session: save profile %s", sessionID)
	}
	return nil
}

func (s *RedisStore) GetProfile(ctx context.Context, sessionID string) (model.CompanyProfile, error) {
	data, err := s.client.Get(ctx, profileKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "session: get profile %s", sessionID)
	}

	var profile model.CompanyProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, eris.Wrapf(err, "session: decode profile %s", sessionID)
	}
	return profile, nil
}

func (s *RedisStore) ClearProfile(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, profileKey(sessionID)).Err(); err != nil {
		return eris.Wrapf(err, "session: clear profile %s", sessionID)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
