package cooldown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemory() (*MemoryLedger, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewMemoryLedger()
	l.now = clock.Now
	return l, clock
}

func newRedis(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLedger(client), mr
}

// ledgers returns each implementation with a function that moves its clock.
func ledgers(t *testing.T) map[string]struct {
	l       Ledger
	advance func(time.Duration)
} {
	mem, clock := newMemory()
	rl, mr := newRedis(t)
	return map[string]struct {
		l       Ledger
		advance func(time.Duration)
	}{
		"memory": {mem, clock.Advance},
		"redis":  {rl, mr.FastForward},
	}
}

func TestCooldownWindow(t *testing.T) {
	ctx := context.Background()
	key := Key{Player: "Steve", Channel: "global"}

	for name, tc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			remaining, ticket, err := tc.l.Reserve(ctx, key, 5*time.Second)
			require.NoError(t, err)
			require.NotNil(t, ticket)
			assert.Zero(t, remaining)
			require.NoError(t, tc.l.Commit(ctx, ticket))

			tc.advance(2 * time.Second)
			remaining, ticket, err = tc.l.Reserve(ctx, key, 5*time.Second)
			require.NoError(t, err)
			assert.Nil(t, ticket)
			assert.Equal(t, 3, Seconds(remaining))

			tc.advance(3*time.Second + time.Millisecond)
			_, ticket, err = tc.l.Reserve(ctx, key, 5*time.Second)
			require.NoError(t, err)
			assert.NotNil(t, ticket)
		})
	}
}

func TestReleaseLeavesNoCooldown(t *testing.T) {
	ctx := context.Background()
	key := Key{Player: "alex", Channel: "trade"}

	for name, tc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			_, ticket, err := tc.l.Reserve(ctx, key, time.Minute)
			require.NoError(t, err)
			require.NoError(t, tc.l.Release(ctx, ticket))

			remaining, err := tc.l.Remaining(ctx, key)
			require.NoError(t, err)
			assert.Zero(t, remaining)

			_, ticket, err = tc.l.Reserve(ctx, key, time.Minute)
			require.NoError(t, err)
			assert.NotNil(t, ticket)
		})
	}
}

func TestRecordOverwrites(t *testing.T) {
	ctx := context.Background()
	key := Key{Player: "alex", Channel: "trade"}

	for name, tc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tc.l.Record(ctx, key, 10*time.Second))
			require.NoError(t, tc.l.Record(ctx, key, 2*time.Second))

			remaining, err := tc.l.Remaining(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 2, Seconds(remaining))
		})
	}
}

func TestConcurrentReserveGrantsOneTicket(t *testing.T) {
	ctx := context.Background()
	key := Key{Player: "steve", Channel: "global"}

	for name, tc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			var granted atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, ticket, err := tc.l.Reserve(ctx, key, time.Minute)
					if err == nil && ticket != nil {
						granted.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), granted.Load())
		})
	}
}

func TestStaleTicketCannotRelease(t *testing.T) {
	ctx := context.Background()
	key := Key{Player: "steve", Channel: "global"}

	for name, tc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			_, stale, err := tc.l.Reserve(ctx, key, time.Second)
			require.NoError(t, err)
			tc.advance(2 * time.Second)

			_, fresh, err := tc.l.Reserve(ctx, key, time.Minute)
			require.NoError(t, err)
			require.NotNil(t, fresh)

			require.NoError(t, tc.l.Release(ctx, stale))
			remaining, err := tc.l.Remaining(ctx, key)
			require.NoError(t, err)
			assert.Greater(t, remaining, 30*time.Second)
		})
	}
}

func TestSweep(t *testing.T) {
	l, clock := newMemory()
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, Key{"a", "x"}, time.Second))
	require.NoError(t, l.Record(ctx, Key{"b", "x"}, time.Minute))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, l.Sweep())
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, Seconds(0))
	assert.Equal(t, 1, Seconds(time.Millisecond))
	assert.Equal(t, 3, Seconds(2*time.Second+time.Nanosecond))
	assert.Equal(t, 2, Seconds(2*time.Second))
}
