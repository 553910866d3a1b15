package pipeline

import (
	"time"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/moderation"
	"github.com/chatty/chat-relay/internal/roster"
)

// Status is the terminal state of one message.
type Status int

const (
	// Delivered means the message reached its resolved audience.
	Delivered Status = iota
	// Restricted means moderation narrowed the audience to the sender.
	Restricted
	Invalid
	NoChannel
	// Empty means nothing was left after stripping colour codes. The
	// message is dropped without a notice.
	Empty
	OnCooldown
	InsufficientFunds
	// Cancelled means a moderation stage in cancel mode blocked it.
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Restricted:
		return "restricted"
	case Invalid:
		return "invalid"
	case NoChannel:
		return "no_channel"
	case Empty:
		return "empty"
	case OnCooldown:
		return "cooldown"
	case InsufficientFunds:
		return "insufficient_funds"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Accepted reports whether the message was delivered to anyone.
func (s Status) Accepted() bool { return s == Delivered || s == Restricted }

// Outcome is returned by Pipeline.Handle.
type Outcome struct {
	Status Status
	// Remaining is the cooldown left when Status is OnCooldown.
	Remaining time.Duration
	// Dispatch is set for accepted messages.
	Dispatch *Dispatch
}

// Dispatch carries one accepted message from moderation through delivery.
type Dispatch struct {
	Sender  roster.Player
	Channel *channel.Channel
	// Recipients are unique by session ID, in roster join order.
	Recipients []roster.Player
	// Text is the moderated message text.
	Text       string
	Moderation moderation.Result
	Legacy     string
	// Interactive is only set when the part model is enabled. Disclosed is
	// the variant shown to viewers allowed to see hidden swears.
	Interactive *compose.Message
	Disclosed   *compose.Message
}

// Restricted reports whether moderation narrowed the audience.
func (d *Dispatch) Restricted() bool { return d.Moderation.Restrict }

// messageFor picks the interactive variant for a viewer.
func (d *Dispatch) messageFor(seeSwears bool) *compose.Message {
	if seeSwears && d.Disclosed != nil {
		return d.Disclosed
	}
	return d.Interactive
}
