// Package cooldown tracks per-player, per-channel send cooldowns.
//
// A send first Reserves the key, which atomically checks for an unexpired
// entry and, when there is none, places a provisional entry owned by the
// returned Ticket. The caller then Commits the ticket once the message is
// accepted, or Releases it if a later gate aborts, so aborted messages leave
// no cooldown behind.
package cooldown

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key identifies one cooldown entry.
type Key struct {
	Player  string
	Channel string
}

func (k Key) String() string {
	return strings.ToLower(k.Player) + ":" + strings.ToLower(k.Channel)
}

// Ticket is a provisional entry placed by Reserve.
type Ticket struct {
	Key    Key
	Window time.Duration
	token  string
}

// Ledger is implemented by MemoryLedger and RedisLedger.
type Ledger interface {
	// Reserve returns the time left on an active entry, or places a
	// provisional entry for window and returns its ticket.
	Reserve(ctx context.Context, key Key, window time.Duration) (remaining time.Duration, t *Ticket, err error)
	Commit(ctx context.Context, t *Ticket) error
	Release(ctx context.Context, t *Ticket) error
	// Remaining reports the time left on the entry, zero when there is none.
	Remaining(ctx context.Context, key Key) (time.Duration, error)
	// Record unconditionally sets the entry to expire window from now.
	Record(ctx context.Context, key Key, window time.Duration) error
}

// Seconds rounds a remaining duration up to whole seconds for display.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

const stripes = 64

type entry struct {
	expiresAt time.Time
	token     string
}

type stripe struct {
	mu      sync.Mutex
	entries map[string]entry
}

// MemoryLedger keeps entries in process memory, split across lock stripes
// so unrelated keys do not contend.
type MemoryLedger struct {
	stripes [stripes]stripe
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	l := &MemoryLedger{now: time.Now}
	for i := range l.stripes {
		l.stripes[i].entries = make(map[string]entry)
	}
	return l
}

func (l *MemoryLedger) stripeFor(k string) *stripe {
	h := fnv.New32a()
	h.Write([]byte(k))
	return &l.stripes[h.Sum32()%stripes]
}

func (l *MemoryLedger) Reserve(_ context.Context, key Key, window time.Duration) (time.Duration, *Ticket, error) {
	k := key.String()
	s := l.stripeFor(k)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[k]; ok && e.expiresAt.After(now) {
		return e.expiresAt.Sub(now), nil, nil
	}
	t := &Ticket{Key: key, Window: window, token: uuid.NewString()}
	s.entries[k] = entry{expiresAt: now.Add(window), token: t.token}
	return 0, t, nil
}

func (l *MemoryLedger) Commit(_ context.Context, t *Ticket) error {
	k := t.Key.String()
	s := l.stripeFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok && e.token == t.token {
		s.entries[k] = entry{expiresAt: l.now().Add(t.Window), token: t.token}
	}
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, t *Ticket) error {
	k := t.Key.String()
	s := l.stripeFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok && e.token == t.token {
		delete(s.entries, k)
	}
	return nil
}

func (l *MemoryLedger) Remaining(_ context.Context, key Key) (time.Duration, error) {
	k := key.String()
	s := l.stripeFor(k)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok && e.expiresAt.After(now) {
		return e.expiresAt.Sub(now), nil
	}
	return 0, nil
}

func (l *MemoryLedger) Record(_ context.Context, key Key, window time.Duration) error {
	k := key.String()
	s := l.stripeFor(k)

	s.mu.Lock()
	s.entries[k] = entry{expiresAt: l.now().Add(window), token: uuid.NewString()}
	s.mu.Unlock()
	return nil
}

// Sweep drops expired entries. The chat server runs it periodically.
func (l *MemoryLedger) Sweep() int {
	now := l.now()
	removed := 0
	for i := range l.stripes {
		s := &l.stripes[i]
		s.mu.Lock()
		for k, e := range s.entries {
			if !e.expiresAt.After(now) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
