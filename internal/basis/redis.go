// SPDX-License-Identifier: MIT

package basis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/photonlab/abel/internal/basex"
)

const redisPrefix = "abel:basis:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// RedisStore is a Redis-backed basis cache, letting several workers share
// one generated set.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis basis store")

	return &RedisStore{client: client, logger: logger}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Load reads the set cached under key.
func (s *RedisStore) Load(ctx context.Context, key string) (*basex.Set, error) {
	val, err := s.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	set, err := decode(bytes.NewReader(val))
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	return set, nil
}

// Save persists the set under key without expiry; basis sets only depend on
// their geometry and never go stale.
func (s *RedisStore) Save(ctx context.Context, key string, set *basex.Set) error {
	buf, err := encodeBytes(set)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisPrefix+key, buf, 0).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

// List returns the keys of all cached sets.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return keys, nil
}

// Delete evicts the set cached under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}
