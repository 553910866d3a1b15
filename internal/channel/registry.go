package channel

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chatty/chat-relay/internal/permission"
)

// Policy picks the resolution tie-break.
type Policy int

const (
	// LastMatch keeps the last eligible symbol match and the last eligible
	// fallback; a symbol match wins over the fallback.
	LastMatch Policy = iota
	// FirstSymbol stops at the first eligible symbol match. Kept for parity
	// with older deployments that relied on declaration order.
	FirstSymbol
)

// ParsePolicy maps general.resolution onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-match":
		return LastMatch, nil
	case "first-symbol":
		return FirstSymbol, nil
	default:
		return 0, fmt.Errorf("channel: unknown resolution policy %q", s)
	}
}

type snapshot struct {
	channels []*Channel
	byName   map[string]*Channel
	policy   Policy
}

// Registry is the ordered channel list. Reload swaps the whole list so
// readers never observe a partial update.
type Registry struct {
	state atomic.Pointer[snapshot]
}

// NewRegistry validates channels and builds a registry.
func NewRegistry(channels []Channel, policy Policy) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(channels, policy); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the channel list. Duplicate names are rejected and the
// previous list stays active.
func (r *Registry) Reload(channels []Channel, policy Policy) error {
	s := &snapshot{
		channels: make([]*Channel, 0, len(channels)),
		byName:   make(map[string]*Channel, len(channels)),
		policy:   policy,
	}
	for i := range channels {
		ch := channels[i]
		if ch.Name == "" {
			return fmt.Errorf("channel: entry %d has no name", i)
		}
		k := strings.ToLower(ch.Name)
		if _, dup := s.byName[k]; dup {
			return fmt.Errorf("channel: duplicate name %q", ch.Name)
		}
		if ch.Scope.Kind == Proximity && ch.Scope.Distance <= 0 {
			return fmt.Errorf("channel: %q: proximity scope needs a positive distance", ch.Name)
		}
		s.channels = append(s.channels, &ch)
		s.byName[k] = &ch
	}
	r.state.Store(s)
	return nil
}

// Channels returns the channels in declaration order.
func (r *Registry) Channels() []*Channel {
	s := r.state.Load()
	out := make([]*Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Lookup finds a channel by its exact name. Names are unique ignoring case,
// so a name differing only in case does not match.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	ch, ok := r.state.Load().byName[strings.ToLower(name)]
	if !ok || ch.Name != name {
		return nil, false
	}
	return ch, true
}

// Resolve selects the channel for raw text sent by player and returns the
// text with the channel symbol removed. ok is false when no enabled channel
// the player may write to accepts the message.
func (r *Registry) Resolve(perms permission.Oracle, player, raw string) (ch *Channel, text string, ok bool) {
	s := r.state.Load()

	var symbolMatch, fallback *Channel
	for _, c := range s.channels {
		if !c.Enabled {
			continue
		}
		if c.Permission && !permission.Any(perms, player, c.WriteNodes()...) {
			continue
		}
		if c.HasSymbol() && strings.HasPrefix(raw, c.Symbol) {
			symbolMatch = c
			if s.policy == FirstSymbol {
				break
			}
			continue
		}
		if !c.HasSymbol() {
			fallback = c
		}
	}

	switch {
	case symbolMatch != nil:
		return symbolMatch, raw[len(symbolMatch.Symbol):], true
	case fallback != nil:
		return fallback, raw, true
	default:
		return nil, "", false
	}
}
