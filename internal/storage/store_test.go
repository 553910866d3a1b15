package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStore(client)

	_, ok, err := s.Get(ctx, "Steve", PropPrefix)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "Steve", PropPrefix, "&a[VIP] "))
	require.NoError(t, s.Set(ctx, "steve", PropGroup, "vip"))

	v, ok, err := s.Get(ctx, "STEVE", PropPrefix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "&a[VIP] ", v)

	all, err := s.All(ctx, "steve")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"prefix": "&a[VIP] ", "group": "vip"}, all)

	require.NoError(t, s.Delete(ctx, "steve", PropPrefix))
	_, ok, err = s.Get(ctx, "steve", PropPrefix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStore(client)
	mr.Close()

	_, _, err := s.Get(context.Background(), "steve", PropPrefix)
	assert.Error(t, err)
}
