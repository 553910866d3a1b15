// Package channel holds the configured chat channels and resolves which
// channel an incoming message belongs to.
package channel

import (
	"fmt"
	"strings"
)

// ScopeKind selects how the audience of a channel is computed.
type ScopeKind int

const (
	Local ScopeKind = iota
	Proximity
	Server
	Network
)

func (k ScopeKind) String() string {
	switch k {
	case Local:
		return "local"
	case Proximity:
		return "proximity"
	case Server:
		return "server"
	case Network:
		return "network"
	default:
		return fmt.Sprintf("scope(%d)", int(k))
	}
}

// ParseScope maps a config value onto a ScopeKind.
func ParseScope(s string) (ScopeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return Local, nil
	case "proximity", "range":
		return Proximity, nil
	case "server", "world":
		return Server, nil
	case "network", "bungee", "bungeecord":
		return Network, nil
	default:
		return 0, fmt.Errorf("channel: unknown scope %q", s)
	}
}

// Scope is a ScopeKind plus the radius used by Proximity.
type Scope struct {
	Kind     ScopeKind
	Distance float64
}

// Channel is one configured chat channel. Cooldown is in seconds and -1
// disables it; a zero Cost means sending is free.
type Channel struct {
	Name       string
	Symbol     string
	Format     string
	Permission bool
	Enabled    bool
	Cooldown   int
	Cost       float64
	Scope      Scope
}

// HasSymbol reports whether the channel is selected by a prefix symbol
// rather than acting as a fallback.
func (c *Channel) HasSymbol() bool { return c.Symbol != "" }

// WriteNodes are the nodes that allow sending into the channel.
func (c *Channel) WriteNodes() []string {
	return []string{"chatty.chat." + c.Name, "chatty.chat." + c.Name + ".write"}
}

// ReadNodes are the nodes that allow seeing the channel. Holding a write
// node also counts as read access.
func (c *Channel) ReadNodes() []string {
	return []string{"chatty.chat." + c.Name + ".see", "chatty.chat." + c.Name, "chatty.chat." + c.Name + ".write"}
}

// CooldownBypassNodes exempt a sender from this channel's cooldown.
func (c *Channel) CooldownBypassNodes() []string {
	return []string{"chatty.cooldown", "chatty.cooldown." + c.Name}
}

// SpyNodes grant the spy copy of this channel.
func (c *Channel) SpyNodes() []string {
	return []string{"chatty.spy", "chatty.spy." + c.Name}
}
