package recipient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
)

func names(ps []roster.Player) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func player(name, world string, x float64) roster.Player {
	return roster.Player{ID: uuid.New(), Name: name, Position: roster.Position{World: world, X: x}}
}

func TestProximityIsStrict(t *testing.T) {
	r := roster.New()
	sender := player("sender", "overworld", 0)
	r.Add(sender)
	r.Add(player("at99", "overworld", 99))
	r.Add(player("at100", "overworld", 100))
	r.Add(player("at101", "overworld", 101))
	r.Add(player("nether", "nether", 1))

	ch := &channel.Channel{Name: "local", Enabled: true, Scope: channel.Scope{Kind: channel.Proximity, Distance: 100}}
	got := NewResolver(r, permission.Static{}).Resolve(ch, sender)

	assert.Equal(t, []string{"sender", "at99"}, names(got))
}

func TestPermissionGatedChannel(t *testing.T) {
	r := roster.New()
	sender := player("staff1", "w", 0)
	r.Add(sender)
	r.Add(player("reader", "w", 0))
	r.Add(player("outsider", "w", 0))
	r.Add(player("writer", "w", 0))

	perms := permission.Static{
		"staff1": {"chatty.chat.staff"},
		"reader": {"chatty.chat.staff.see"},
		"writer": {"chatty.chat.staff.write"},
	}
	ch := &channel.Channel{Name: "staff", Enabled: true, Permission: true, Scope: channel.Scope{Kind: channel.Network}}
	res := NewResolver(r, perms)

	assert.Equal(t, []string{"staff1", "reader", "writer"}, names(res.Resolve(ch, sender)))
	assert.Equal(t, []string{"staff1", "reader", "writer"}, names(res.ResolveAudience(ch)))
}

func TestServerScopeReturnsEveryone(t *testing.T) {
	r := roster.New()
	sender := player("a", "w1", 0)
	r.Add(sender)
	r.Add(player("b", "w2", 1e6))

	for _, kind := range []channel.ScopeKind{channel.Server, channel.Local, channel.Network} {
		ch := &channel.Channel{Name: "global", Enabled: true, Scope: channel.Scope{Kind: kind}}
		assert.Equal(t, []string{"a", "b"}, names(NewResolver(r, permission.Static{}).Resolve(ch, sender)), kind.String())
	}
}
