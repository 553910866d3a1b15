package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/internal/recipient"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/scheduler"
)

// bus connects nodes in memory. A node never receives its own frames.
type bus struct {
	mu       sync.Mutex
	handlers map[*busPort]func([]byte)
	fail     bool
}

type busPort struct{ b *bus }

func (b *bus) port() *busPort {
	if b.handlers == nil {
		b.handlers = make(map[*busPort]func([]byte))
	}
	return &busPort{b: b}
}

func (p *busPort) Send(_ string, data []byte) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.b.fail {
		return errors.New("bus down")
	}
	for port, h := range p.b.handlers {
		if port != p {
			h(data)
		}
	}
	return nil
}

func (p *busPort) OnReceive(_ string, h func([]byte)) error {
	p.b.handlers[p] = h
	return nil
}

type sink struct {
	text map[string][]string
	rich map[string][]compose.Message
}

func newSink() *sink {
	return &sink{text: map[string][]string{}, rich: map[string][]compose.Message{}}
}

func (s *sink) SendText(p roster.Player, text string) { s.text[p.Name] = append(s.text[p.Name], text) }
func (s *sink) SendRich(p roster.Player, m compose.Message) {
	s.rich[p.Name] = append(s.rich[p.Name], m)
}

type fixture struct {
	node  *Node
	loop  *scheduler.TickLoop
	sink  *sink
	names []string
}

func newFixture(t *testing.T, b *bus, perms permission.Oracle, names ...string) *fixture {
	t.Helper()
	reg, err := channel.NewRegistry([]channel.Channel{
		{Name: "global", Enabled: true, Scope: channel.Scope{Kind: channel.Network}},
		{Name: "staff", Enabled: true, Permission: true, Scope: channel.Scope{Kind: channel.Network}},
		{Name: "local", Enabled: true, Scope: channel.Scope{Kind: channel.Server}},
	}, channel.LastMatch)
	require.NoError(t, err)

	r := roster.New()
	for _, n := range names {
		r.Add(roster.Player{ID: uuid.New(), Name: n})
	}
	loop := scheduler.NewTickLoop(0, zap.NewNop())
	s := newSink()
	node := NewNode(b.port(), "", reg, recipient.NewResolver(r, perms), loop, s, zap.NewNop())
	require.NoError(t, node.Start())
	return &fixture{node: node, loop: loop, sink: s, names: names}
}

func TestRelayDeliversToPeers(t *testing.T) {
	b := &bus{}
	perms := permission.Static{"mod": {"chatty.chat.staff.see"}}
	a := newFixture(t, b, perms, "alice")
	peer := newFixture(t, b, perms, "bob", "mod")

	global, _ := a.node.channels.Lookup("global")
	require.NoError(t, a.node.Send(global, "§7alice: hi", false))
	peer.loop.Advance()
	a.loop.Advance()

	assert.Equal(t, []string{"§7alice: hi"}, peer.sink.text["bob"])
	assert.Equal(t, []string{"§7alice: hi"}, peer.sink.text["mod"])
	assert.Empty(t, a.sink.text, "sender node must not receive its own frame")

	staff, _ := a.node.channels.Lookup("staff")
	require.NoError(t, a.node.Send(staff, "secret", false))
	peer.loop.Advance()
	assert.Len(t, peer.sink.text["bob"], 1)
	assert.Equal(t, []string{"§7alice: hi", "secret"}, peer.sink.text["mod"])
}

func TestRelayRichFrames(t *testing.T) {
	b := &bus{}
	a := newFixture(t, b, permission.Static{}, "alice")
	peer := newFixture(t, b, permission.Static{}, "bob")

	msg := compose.Message{Parts: []compose.Part{{Text: "alice", Color: "gray"}, {Text: ": hi"}}}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	global, _ := a.node.channels.Lookup("global")
	require.NoError(t, a.node.Send(global, string(data), true))
	peer.loop.Advance()

	require.Len(t, peer.sink.rich["bob"], 1)
	assert.Equal(t, msg, peer.sink.rich["bob"][0])
}

func TestRelaySkipsNonNetworkScope(t *testing.T) {
	b := &bus{}
	a := newFixture(t, b, permission.Static{}, "alice")
	peer := newFixture(t, b, permission.Static{}, "bob")

	local, _ := a.node.channels.Lookup("local")
	require.NoError(t, a.node.Send(local, "x", false))
	peer.loop.Advance()
	assert.Empty(t, peer.sink.text)
}

func TestHandleDropsBadFrames(t *testing.T) {
	b := &bus{}
	f := newFixture(t, b, permission.Static{}, "bob")

	frames := map[string][]byte{
		"garbage": []byte("garbage"),
	}
	for name, fr := range map[string]protocol.RelayFrame{
		"unknown channel":  {Channel: "nope", Text: "x"},
		"non-network":      {Channel: "local", Text: "x"},
		"broken component": {Channel: "global", Text: "{", Rich: true},
	} {
		data, err := fr.Encode()
		require.NoError(t, err)
		frames[name] = data
	}

	for name, data := range frames {
		t.Run(name, func(t *testing.T) {
			f.node.Handle(data)
			f.loop.Advance()
			assert.Empty(t, f.sink.text)
			assert.Empty(t, f.sink.rich)
		})
	}
}

func TestSendReportsTransportError(t *testing.T) {
	b := &bus{fail: true}
	f := newFixture(t, b, permission.Static{}, "alice")
	global, _ := f.node.channels.Lookup("global")
	assert.Error(t, f.node.Send(global, "x", false))
}
