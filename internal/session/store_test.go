package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, server string) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, server), mr
}

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, "node-1")

	require.NoError(t, s.Create(ctx, "sid-1", "Steve"))

	sess, err := s.Lookup(ctx, "steve")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sid-1", sess.ID)
	assert.Equal(t, "Steve", sess.Name)
	assert.Equal(t, "node-1", sess.Server)

	assert.ErrorIs(t, s.Create(ctx, "sid-2", "STEVE"), ErrNameTaken)
}

func TestDeleteReleasesName(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, "node-1")

	require.NoError(t, s.Create(ctx, "sid-1", "Steve"))
	require.NoError(t, s.Delete(ctx, "sid-1", "Steve"))

	sess, err := s.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	require.NoError(t, s.Create(ctx, "sid-2", "Steve"))
	// A stale delete must not release the name held by the new session.
	require.NoError(t, s.Delete(ctx, "sid-1", "Steve"))
	sess, err = s.Lookup(ctx, "steve")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sid-2", sess.ID)
}

func TestTouchExtendsTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, "node-1")

	require.NoError(t, s.Create(ctx, "sid-1", "Steve"))
	mr.FastForward(SessionTTL / 2)
	require.NoError(t, s.Touch(ctx, "sid-1", "Steve"))
	mr.FastForward(SessionTTL * 3 / 4)

	sess, err := s.Lookup(ctx, "steve")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}
