package modelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/predictor"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the newest snapshot under <prefix>:latest and announces
// each saved model id on <prefix>:published.
type RedisStore struct {
	rc     *redis.Client
	prefix string
	decode predictor.DecodeFn
}

func NewRedis(ctx context.Context, config *Config, decode predictor.DecodeFn) (*RedisStore, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", config.RedisAddr, err)
	}
	return NewRedisWithClient(rc, config.RedisPrefix, decode), nil
}

func NewRedisWithClient(rc *redis.Client, prefix string, decode predictor.DecodeFn) *RedisStore {
	return &RedisStore{rc: rc, prefix: prefix, decode: decode}
}

func (s *RedisStore) latestKey() string {
	return s.prefix + ":latest"
}

func (s *RedisStore) Channel() string {
	return s.prefix + ":published"
}

func (s *RedisStore) Save(ctx context.Context, m predictor.Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode model %s: %w", m.ID(), err)
	}
	if err := s.rc.Set(ctx, s.latestKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("storing model %s in redis: %w", m.ID(), err)
	}
	receivers, err := s.rc.Publish(ctx, s.Channel(), m.ID()).Result()
	if err != nil {
		return fmt.Errorf("publishing model %s: %w", m.ID(), err)
	}
	logging.FromContext(ctx).Debugf("model %s published to %d receivers", m.ID(), receivers)
	return nil
}

func (s *RedisStore) Latest(ctx context.Context) (predictor.Model, error) {
	data, err := s.rc.Get(ctx, s.latestKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: %w", s.latestKey(), err)
	}
	m, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode model %q: %w", s.latestKey(), err)
	}
	return m, nil
}

func (s *RedisStore) Close() error {
	return s.rc.Close()
}
