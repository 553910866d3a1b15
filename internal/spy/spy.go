// Package spy copies channel traffic to staff who are not already part of
// a message's audience.
package spy

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/recipient"
	"github.com/chatty/chat-relay/internal/roster"
)

// DefaultFormat wraps the legacy line of the spied message.
const DefaultFormat = "&6[Spy] &r{format}"

// Settings controls the tap.
type Settings struct {
	Enable bool
	Format string
}

// Tap is one spy copy ready for delivery.
type Tap struct {
	Targets []roster.Player
	Line    string
}

// Relay selects spies and renders their copy. Spies can switch the copy
// off for the rest of their session.
type Relay struct {
	online   recipient.Online
	perms    permission.Oracle
	settings atomic.Pointer[Settings]

	mu       sync.RWMutex
	disabled map[roster.PlayerID]struct{}
}

// NewRelay creates a spy relay.
func NewRelay(online recipient.Online, perms permission.Oracle, s Settings) *Relay {
	r := &Relay{online: online, perms: perms, disabled: make(map[roster.PlayerID]struct{})}
	r.SetSettings(s)
	return r
}

// SetSettings swaps the settings, typically on config reload.
func (r *Relay) SetSettings(s Settings) {
	if s.Format == "" {
		s.Format = DefaultFormat
	}
	r.settings.Store(&s)
}

// Toggle flips the spy copy for a player and reports whether it is now on.
func (r *Relay) Toggle(id roster.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, off := r.disabled[id]; off {
		delete(r.disabled, id)
		return true
	}
	r.disabled[id] = struct{}{}
	return false
}

// Enabled reports whether the player currently receives spy copies.
func (r *Relay) Enabled(id roster.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[id]
	return !off
}

// Forget clears the toggle of a player who left.
func (r *Relay) Forget(id roster.PlayerID) {
	r.mu.Lock()
	delete(r.disabled, id)
	r.mu.Unlock()
}

// Tap computes the spy copy of a delivered message. ok is false when the
// tap is disabled or nobody qualifies.
func (r *Relay) Tap(ch *channel.Channel, recipients []roster.Player, legacy string) (Tap, bool) {
	s := r.settings.Load()
	if !s.Enable {
		return Tap{}, false
	}

	primary := make(map[roster.PlayerID]struct{}, len(recipients))
	for _, p := range recipients {
		primary[p.ID] = struct{}{}
	}

	var targets []roster.Player
	for _, p := range r.online.Online() {
		if _, ok := primary[p.ID]; ok {
			continue
		}
		if !r.Enabled(p.ID) || !permission.Any(r.perms, p.Name, ch.SpyNodes()...) {
			continue
		}
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		return Tap{}, false
	}
	return Tap{Targets: targets, Line: strings.ReplaceAll(compose.Colorize(s.Format), "{format}", legacy)}, true
}
