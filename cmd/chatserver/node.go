package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/command"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/pipeline"
	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/spy"
	"github.com/chatty/chat-relay/internal/storage"
	"github.com/chatty/chat-relay/internal/ws"
)

// handleTimeout bounds the Redis work done for one inbound frame.
const handleTimeout = 5 * time.Second

// node binds the ws host to the roster, permission groups and the chat
// pipeline. It implements ws.Handler.
type node struct {
	players  *roster.Roster
	groups   *permission.Groups
	store    storage.Store
	spy      *spy.Relay
	pipeline *pipeline.Pipeline
	commands *command.Dispatcher
	frames   *ws.MessageDispatcher
	notify   func(c *ws.Connection, text string)
	// defaultGroup is read on every join so reloads apply to new players.
	defaultGroup func() string
	logger       *zap.Logger
}

// Join loads the player's permission group and puts them online.
func (n *node) Join(ctx context.Context, c *ws.Connection) error {
	group := n.defaultGroup()
	stored, ok, err := n.store.Get(ctx, c.Name, storage.PropGroup)
	switch {
	case err != nil:
		n.logger.Warn("load group", zap.String("player", c.Name), zap.Error(err))
	case ok && stored != "":
		group = stored
	}
	n.groups.Assign(c.Name, group)
	n.players.Add(roster.Player{ID: c.ID, Name: c.Name})
	n.logger.Debug("joined", zap.String("player", c.Name), zap.String("group", group))
	return nil
}

// Leave drops every per-player record.
func (n *node) Leave(c *ws.Connection) {
	n.players.Remove(c.ID)
	n.spy.Forget(c.ID)
	n.groups.Forget(c.Name)
}

func (n *node) Frame(c *ws.Connection, data []byte) { n.frames.Dispatch(c, data) }

// register installs the client message handlers on d.
func (n *node) register(d *ws.MessageDispatcher) {
	d.Register(protocol.TypeMessage, func(c *ws.Connection, msg any) {
		m, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		sender, online := n.players.Get(c.ID)
		if !online {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		out := n.pipeline.Handle(ctx, sender, m.Text)
		n.logger.Debug("message handled",
			zap.String("player", sender.Name),
			zap.String("status", out.Status.String()))
	})

	d.Register(protocol.TypeMove, func(c *ws.Connection, msg any) {
		m, ok := msg.(protocol.MoveMsg)
		if !ok {
			return
		}
		n.players.Move(c.ID, roster.Position{World: m.World, X: m.X, Y: m.Y, Z: m.Z})
	})

	d.Register(protocol.TypeCommand, func(c *ws.Connection, msg any) {
		m, ok := msg.(protocol.CommandMsg)
		if !ok {
			return
		}
		caller, online := n.players.Get(c.ID)
		if !online {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		n.notify(c, n.commands.Dispatch(ctx, caller, m.Label, m.Args))
	})
}
