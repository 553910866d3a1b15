package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cooldown entries in Redis.
const KeyPrefix = "cd:"

// commitScript refreshes the entry only while the ticket still owns it.
var commitScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// releaseScript deletes the entry only while the ticket still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLedger shares cooldowns between nodes. Each entry is a key holding
// the owning ticket token with a PX expiry equal to the window.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger creates a ledger backed by the given Redis client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func redisKey(k Key) string { return KeyPrefix + k.String() }

func (l *RedisLedger) Reserve(ctx context.Context, key Key, window time.Duration) (time.Duration, *Ticket, error) {
	rk := redisKey(key)
	t := &Ticket{Key: key, Window: window, token: uuid.NewString()}

	ok, err := l.client.SetNX(ctx, rk, t.token, window).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("cooldown: reserve %s: %w", rk, err)
	}
	if ok {
		return 0, t, nil
	}

	ttl, err := l.client.PTTL(ctx, rk).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("cooldown: pttl %s: %w", rk, err)
	}
	if ttl <= 0 {
		// Expired between SETNX and PTTL; treat as free and retry once.
		ok, err = l.client.SetNX(ctx, rk, t.token, window).Result()
		if err != nil {
			return 0, nil, fmt.Errorf("cooldown: reserve %s: %w", rk, err)
		}
		if ok {
			return 0, t, nil
		}
		return time.Millisecond, nil, nil
	}
	return ttl, nil, nil
}

func (l *RedisLedger) Commit(ctx context.Context, t *Ticket) error {
	rk := redisKey(t.Key)
	if err := commitScript.Run(ctx, l.client, []string{rk}, t.token, t.Window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cooldown: commit %s: %w", rk, err)
	}
	return nil
}

func (l *RedisLedger) Release(ctx context.Context, t *Ticket) error {
	rk := redisKey(t.Key)
	if err := releaseScript.Run(ctx, l.client, []string{rk}, t.token).Err(); err != nil {
		return fmt.Errorf("cooldown: release %s: %w", rk, err)
	}
	return nil
}

func (l *RedisLedger) Remaining(ctx context.Context, key Key) (time.Duration, error) {
	rk := redisKey(key)
	ttl, err := l.client.PTTL(ctx, rk).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cooldown: pttl %s: %w", rk, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisLedger) Record(ctx context.Context, key Key, window time.Duration) error {
	rk := redisKey(key)
	if err := l.client.Set(ctx, rk, uuid.NewString(), window).Err(); err != nil {
		return fmt.Errorf("cooldown: record %s: %w", rk, err)
	}
	return nil
}
