// Package relay forwards finalized network-scope messages to peer nodes
// and delivers frames received from them.
package relay

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/metrics"
	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/scheduler"
)

// DefaultTransportTag names the transport channel frames travel on.
const DefaultTransportTag = "BungeeCord"

// Transport moves opaque frames between nodes.
type Transport interface {
	Send(tag string, data []byte) error
	OnReceive(tag string, handler func(data []byte)) error
}

// Sink delivers output to a local player.
type Sink interface {
	SendText(p roster.Player, text string)
	SendRich(p roster.Player, msg compose.Message)
}

// Audience lists local players allowed to read a channel.
type Audience interface {
	ResolveAudience(ch *channel.Channel) []roster.Player
}

// Node is one participant of the relay.
type Node struct {
	transport Transport
	tag       string
	channels  *channel.Registry
	audience  Audience
	sched     scheduler.Scheduler
	sink      Sink
	logger    *zap.Logger
}

// NewNode creates a relay node. An empty tag uses DefaultTransportTag.
func NewNode(t Transport, tag string, channels *channel.Registry, audience Audience, sched scheduler.Scheduler, sink Sink, logger *zap.Logger) *Node {
	if tag == "" {
		tag = DefaultTransportTag
	}
	return &Node{
		transport: t,
		tag:       tag,
		channels:  channels,
		audience:  audience,
		sched:     sched,
		sink:      sink,
		logger:    logger,
	}
}

// Start subscribes to inbound frames.
func (n *Node) Start() error {
	if err := n.transport.OnReceive(n.tag, n.Handle); err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}
	return nil
}

// Send forwards a finalized message. Channels that are not network-scoped
// are never forwarded.
func (n *Node) Send(ch *channel.Channel, text string, rich bool) error {
	if ch.Scope.Kind != channel.Network {
		return nil
	}
	data, err := protocol.RelayFrame{Channel: ch.Name, Text: text, Rich: rich}.Encode()
	if err != nil {
		metrics.RelayFrames.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("relay: encode: %w", err)
	}
	if err := n.transport.Send(n.tag, data); err != nil {
		metrics.RelayFrames.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("relay: send: %w", err)
	}
	metrics.RelayFrames.WithLabelValues("out", "ok").Inc()
	return nil
}

// Handle delivers one inbound frame. Malformed frames and frames for
// channels that are unknown here or not network-scoped are dropped.
func (n *Node) Handle(data []byte) {
	f, err := protocol.DecodeRelayFrame(data)
	if err != nil {
		metrics.RelayFrames.WithLabelValues("in", "malformed").Inc()
		n.logger.Debug("dropping malformed frame", zap.Int("bytes", len(data)), zap.Error(err))
		return
	}

	ch, ok := n.channels.Lookup(f.Channel)
	if !ok || ch.Scope.Kind != channel.Network {
		metrics.RelayFrames.WithLabelValues("in", "ignored").Inc()
		n.logger.Debug("dropping frame for non-network channel", zap.String("channel", f.Channel))
		return
	}

	var (
		msg   compose.Message
		plain = f.Text
	)
	if f.Rich {
		if err := json.Unmarshal([]byte(f.Text), &msg); err != nil {
			metrics.RelayFrames.WithLabelValues("in", "malformed").Inc()
			n.logger.Debug("dropping frame with bad component", zap.String("channel", f.Channel), zap.Error(err))
			return
		}
		plain = msg.PlainText()
	}

	recipients := n.audience.ResolveAudience(ch)
	n.sched.Submit(func() {
		for _, p := range recipients {
			if f.Rich {
				n.sink.SendRich(p, msg)
			} else {
				n.sink.SendText(p, f.Text)
			}
		}
	})
	metrics.RelayFrames.WithLabelValues("in", "ok").Inc()
	n.logger.Info("relayed message", zap.String("channel", ch.Name), zap.String("text", compose.StripColors(plain)), zap.Int("recipients", len(recipients)))
}
