// Package recipient computes who receives a message sent into a channel.
package recipient

import (
	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
)

// Online is the roster view the resolver needs.
type Online interface {
	Online() []roster.Player
}

// Resolver filters the online roster by channel scope and read permission.
type Resolver struct {
	online Online
	perms  permission.Oracle
}

// NewResolver creates a Resolver.
func NewResolver(online Online, perms permission.Oracle) *Resolver {
	return &Resolver{online: online, perms: perms}
}

// Resolve returns the recipients of a message from sender, in join order.
// Proximity channels keep only players in the sender's world strictly
// inside the channel distance.
func (r *Resolver) Resolve(ch *channel.Channel, sender roster.Player) []roster.Player {
	var out []roster.Player
	for _, p := range r.online.Online() {
		if !r.canRead(ch, p) {
			continue
		}
		if ch.Scope.Kind == channel.Proximity && !within(sender.Position, p.Position, ch.Scope.Distance) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ResolveAudience returns everyone on this node who may read the channel.
// Used for frames relayed from other nodes, which have no local sender.
func (r *Resolver) ResolveAudience(ch *channel.Channel) []roster.Player {
	var out []roster.Player
	for _, p := range r.online.Online() {
		if r.canRead(ch, p) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) canRead(ch *channel.Channel, p roster.Player) bool {
	return !ch.Permission || permission.Any(r.perms, p.Name, ch.ReadNodes()...)
}

func within(origin, p roster.Position, distance float64) bool {
	return origin.World == p.World && origin.DistanceSquared(p) < distance*distance
}
