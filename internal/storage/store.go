// Package storage keeps permanent per-player properties such as a custom
// chat prefix or permission group.
//
//	Key:   player:<lower-case name>
//	Type:  hash of property -> value
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix is the Redis key prefix of property hashes.
const KeyPrefix = "player:"

// Well-known property names.
const (
	PropPrefix = "prefix"
	PropSuffix = "suffix"
	PropGroup  = "group"
)

// Store is the permanent storage collaborator.
type Store interface {
	Get(ctx context.Context, player, key string) (string, bool, error)
	Set(ctx context.Context, player, key, value string) error
	Delete(ctx context.Context, player, key string) error
}

// RedisStore implements Store on Redis hashes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store using the provided Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func playerKey(player string) string { return KeyPrefix + strings.ToLower(player) }

func (s *RedisStore) Get(ctx context.Context, player, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, playerKey(player), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, player, key, value string) error {
	if err := s.client.HSet(ctx, playerKey(player), key, value).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, player, key string) error {
	if err := s.client.HDel(ctx, playerKey(player), key).Err(); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// All returns every stored property of a player.
func (s *RedisStore) All(ctx context.Context, player string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, playerKey(player)).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: all: %w", err)
	}
	return m, nil
}
