// Package session records which node each connected player is on. Entries
// live in Redis so every node can tell whether a name is already online
// somewhere on the network.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionPrefix is the Redis key prefix for all session hashes.
	SessionPrefix = "session:"

	// NamePrefix maps a lower-case player name to its session ID.
	NamePrefix = "session:name:"

	// SessionTTL is the time-to-live for session keys in Redis. Heartbeats
	// refresh it while the player stays connected.
	SessionTTL = 1 * time.Hour
)

// ErrNameTaken is returned by Create when the name is online elsewhere.
var ErrNameTaken = errors.New("session: name already online")

// Session represents a connected player stored in Redis.
type Session struct {
	ID         string `redis:"id"`
	Name       string `redis:"name"`
	Server     string `redis:"server"`     // which node the player is on
	CreatedAt  int64  `redis:"created_at"` // unix timestamp
	LastActive int64  `redis:"last_active"`
}

// Store manages session state in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore creates a session store for the named node.
func NewStore(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

func nameKey(name string) string { return NamePrefix + strings.ToLower(name) }

// Create claims the player name and stores a new session. It fails with
// ErrNameTaken when another live session holds the name.
func (s *Store) Create(ctx context.Context, sessionID, name string) error {
	ok, err := s.client.SetNX(ctx, nameKey(name), sessionID, SessionTTL).Result()
	if err != nil {
		return fmt.Errorf("session: claim name: %w", err)
	}
	if !ok {
		return ErrNameTaken
	}

	key := SessionPrefix + sessionID
	now := time.Now().Unix()
	fields := map[string]interface{}{
		"id":          sessionID,
		"name":        name,
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, nameKey(name))
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

// Get retrieves a session. Returns nil if not found.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := s.client.HGetAll(ctx, SessionPrefix+sessionID).Scan(&session); err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if session.ID == "" {
		return nil, nil
	}
	return &session, nil
}

// Lookup finds the live session holding a player name.
func (s *Store) Lookup(ctx context.Context, name string) (*Session, error) {
	id, err := s.client.Get(ctx, nameKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: lookup: %w", err)
	}
	return s.Get(ctx, id)
}

// Touch marks the session active and extends both keys.
func (s *Store) Touch(ctx context.Context, sessionID, name string) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, SessionPrefix+sessionID, "last_active", time.Now().Unix())
	pipe.Expire(ctx, SessionPrefix+sessionID, SessionTTL)
	pipe.Expire(ctx, nameKey(name), SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes the session and releases the name if this session still
// holds it.
func (s *Store) Delete(ctx context.Context, sessionID, name string) error {
	if err := releaseName.Run(ctx, s.client, []string{nameKey(name)}, sessionID).Err(); err != nil {
		return fmt.Errorf("session: release name: %w", err)
	}
	return s.client.Del(ctx, SessionPrefix+sessionID).Err()
}

var releaseName = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
