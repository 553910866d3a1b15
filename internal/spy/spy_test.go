package spy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
)

func setup() (*roster.Roster, map[string]roster.Player) {
	r := roster.New()
	ps := map[string]roster.Player{}
	for _, n := range []string{"sender", "friend", "spy", "globalspy", "nobody"} {
		p := roster.Player{ID: uuid.New(), Name: n}
		r.Add(p)
		ps[n] = p
	}
	return r, ps
}

var perms = permission.Static{
	"spy":       {"chatty.spy.local"},
	"globalspy": {"chatty.spy"},
	"friend":    {"chatty.spy"},
}

func TestTapExcludesPrimaryRecipients(t *testing.T) {
	r, ps := setup()
	relay := NewRelay(r, perms, Settings{Enable: true})
	ch := &channel.Channel{Name: "local"}

	tap, ok := relay.Tap(ch, []roster.Player{ps["sender"], ps["friend"]}, "§7sender: hi")
	require.True(t, ok)
	assert.Equal(t, []roster.Player{ps["spy"], ps["globalspy"]}, tap.Targets)
	assert.Equal(t, "§6[Spy] §r§7sender: hi", tap.Line)
}

func TestTapChannelSpecificNode(t *testing.T) {
	r, ps := setup()
	relay := NewRelay(r, perms, Settings{Enable: true, Format: "[S] {format}"})

	tap, ok := relay.Tap(&channel.Channel{Name: "trade"}, []roster.Player{ps["sender"]}, "x")
	require.True(t, ok)
	assert.Equal(t, []roster.Player{ps["friend"], ps["globalspy"]}, tap.Targets)
	assert.Equal(t, "[S] x", tap.Line)
}

func TestToggleAndForget(t *testing.T) {
	r, ps := setup()
	relay := NewRelay(r, perms, Settings{Enable: true})
	ch := &channel.Channel{Name: "local"}

	assert.False(t, relay.Toggle(ps["spy"].ID))
	assert.False(t, relay.Toggle(ps["globalspy"].ID))
	_, ok := relay.Tap(ch, []roster.Player{ps["sender"], ps["friend"]}, "x")
	assert.False(t, ok)

	assert.True(t, relay.Toggle(ps["spy"].ID))
	relay.Forget(ps["globalspy"].ID)
	tap, ok := relay.Tap(ch, []roster.Player{ps["sender"], ps["friend"]}, "x")
	require.True(t, ok)
	assert.Len(t, tap.Targets, 2)
}

func TestDisabledTap(t *testing.T) {
	r, ps := setup()
	relay := NewRelay(r, perms, Settings{})
	_, ok := relay.Tap(&channel.Channel{Name: "local"}, []roster.Player{ps["sender"]}, "x")
	assert.False(t, ok)
}
