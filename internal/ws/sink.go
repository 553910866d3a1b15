package ws

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/internal/roster"
)

// SendText delivers a rendered legacy line. Players who already left are
// skipped.
func (s *Server) SendText(p roster.Player, text string) {
	if c := s.conns.Get(p.ID); c != nil {
		s.send(c, protocol.TypeChat, protocol.ServerChatMsg{Text: text, Ts: time.Now().Unix()})
	}
}

// SendRich delivers an interactive message as component JSON.
func (s *Server) SendRich(p roster.Player, msg compose.Message) {
	c := s.conns.Get(p.ID)
	if c == nil {
		return
	}
	component, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encode component", zap.Error(err))
		return
	}
	s.send(c, protocol.TypeRichChat, protocol.ServerRichChatMsg{Component: component, Ts: time.Now().Unix()})
}

// Notice sends a system line such as a command reply.
func (s *Server) Notice(c *Connection, text string) {
	if text == "" {
		return
	}
	s.send(c, protocol.TypeNotice, protocol.NoticeMsg{Text: text})
}
