package ws

import (
	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/protocol"
)

// MessageHandler handles one parsed client message. msg is the concrete
// struct returned by protocol.ParseClientMessage.
type MessageHandler func(c *Connection, msg any)

// MessageDispatcher routes client messages by type. Pings are answered
// here; everything else goes to registered handlers.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	server   *Server
	logger   *zap.Logger
}

func NewMessageDispatcher(logger *zap.Logger) *MessageDispatcher {
	return &MessageDispatcher{handlers: make(map[string]MessageHandler), logger: logger}
}

// SetServer binds the server used for replies. The dispatcher is usually
// created first because the server needs it as its Handler.
func (d *MessageDispatcher) SetServer(s *Server) { d.server = s }

// Register sets the handler for a message type, replacing any earlier one.
func (d *MessageDispatcher) Register(msgType string, h MessageHandler) {
	d.handlers[msgType] = h
}

// Dispatch parses one frame and routes it.
func (d *MessageDispatcher) Dispatch(c *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		d.logger.Debug("parse client message", zap.String("player", c.Name), zap.Error(err))
		d.reply(c, protocol.TypeError, protocol.ErrorMsg{Code: "parse_error", Message: "invalid message format"})
		return
	}

	if msgType == protocol.TypePing {
		c.Touch()
		d.reply(c, protocol.TypePong, protocol.PongMsg{})
		return
	}

	h, ok := d.handlers[msgType]
	if !ok {
		d.reply(c, protocol.TypeError, protocol.ErrorMsg{Code: "unsupported_type", Message: "unsupported message type"})
		return
	}
	h(c, msg)
}

func (d *MessageDispatcher) reply(c *Connection, msgType string, payload any) {
	if d.server != nil {
		d.server.send(c, msgType, payload)
		return
	}
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		d.logger.Error("build reply", zap.Error(err))
		return
	}
	if err := c.WriteMessage(data); err != nil {
		d.logger.Debug("write reply", zap.String("player", c.Name), zap.Error(err))
	}
}
