// Package chatlog records accepted chat messages. Nodes publish entries on
// NATS; the chatlog service stores them in PostgreSQL.
package chatlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one logged message.
type Entry struct {
	Time     time.Time `json:"time"`
	Node     string    `json:"node"`
	PlayerID uuid.UUID `json:"player_id"`
	Player   string    `json:"player"`
	Channel  string    `json:"channel"`
	Text     string    `json:"text"`
	// Tags name the moderation filters that blocked the message, e.g.
	// "[SWEAR]".
	Tags []string `json:"tags,omitempty"`
}

// Line renders the entry as a log file line:
//
//	[15:04:05] [SWEAR] Steve (uuid): text
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] %s%s (%s): %s",
		e.Time.Format("15:04:05"), tagPrefix(e.Tags), e.Player, e.PlayerID, e.Text)
}

func tagPrefix(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, "") + " "
}

// Publisher sends encoded entries to the log consumers.
type Publisher interface {
	PublishChatLog(data []byte) error
}

// Recorder publishes entries, logging failures instead of returning them so
// the chat path never blocks on the log.
type Recorder struct {
	pub    Publisher
	node   string
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder for the named node. A nil publisher only
// writes entries to the logger.
func NewRecorder(pub Publisher, node string, logger *zap.Logger) *Recorder {
	return &Recorder{pub: pub, node: node, logger: logger, now: time.Now}
}

// Record stamps and publishes an entry.
func (r *Recorder) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	if e.Node == "" {
		e.Node = r.node
	}
	r.logger.Info(e.Line(), zap.String("channel", e.Channel))

	if r.pub == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("encode chat log entry", zap.Error(err))
		return
	}
	if err := r.pub.PublishChatLog(data); err != nil {
		r.logger.Warn("publish chat log entry", zap.Error(err))
	}
}

// Decode parses an entry published by Record.
func Decode(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("chatlog: decode: %w", err)
	}
	return e, nil
}
