// Package protocol defines the JSON messages exchanged with players over
// WebSocket and the binary frame exchanged between nodes. Client messages
// share an envelope with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types.
const (
	TypeMessage = "message"
	TypeMove    = "move"
	TypeCommand = "command"
	TypePing    = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeChat           = "chat"
	TypeRichChat       = "rich_chat"
	TypeNotice         = "notice"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw bytes and extracts only the type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ChatMsg is a line typed by the player, channel symbol included.
type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MoveMsg reports the player's position.
type MoveMsg struct {
	Type  string  `json:"type"`
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// CommandMsg invokes a chat command such as prefix or spy.
type CommandMsg struct {
	Type  string   `json:"type"`
	Label string   `json:"label"`
	Args  []string `json:"args"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// SessionCreatedMsg is sent once the player is online.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// ServerChatMsg carries a rendered legacy line.
type ServerChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// ServerRichChatMsg carries an interactive message in component JSON.
type ServerRichChatMsg struct {
	Type      string          `json:"type"`
	Component json.RawMessage `json:"component"`
	Ts        int64           `json:"ts"`
}

// NoticeMsg is a system line addressed to one player.
type NoticeMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RateLimitedMsg is sent when the connection floods the server.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg communicates an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg answers a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// An error is returned for unknown or server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMove:
		var m MoveMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCommand:
		var m CommandMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage marshals payload and forces its "type" field to msgType.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	t, _ := json.Marshal(msgType)
	m["type"] = t

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
