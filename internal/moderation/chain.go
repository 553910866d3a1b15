package moderation

import (
	"strings"

	"github.com/chatty/chat-relay/internal/permission"
)

// Stage binds a filter to the mode applied when it blocks.
type Stage struct {
	Filter Filter
	Mode   Mode
}

// BypassNode exempts a sender from the stage.
func (s Stage) BypassNode() string { return "chatty.moderation." + s.Filter.Kind() }

// Tag prefixes chat log lines for messages this stage blocked.
func (s Stage) Tag() string {
	switch s.Filter.Kind() {
	case KindSwear:
		return "[SWEAR]"
	case KindAdvertisement:
		return "[ADS]"
	default:
		return "[" + strings.ToUpper(s.Filter.Kind()) + "]"
	}
}

// Block records one stage that blocked the message.
type Block struct {
	Kind    string
	Tag     string
	Verdict Verdict
}

// NoticeKey is the message key sent to the sender for this block.
func (b Block) NoticeKey() string { return b.Kind + "-found" }

// Result is the combined outcome of the chain.
type Result struct {
	Text       string
	Blocks     []Block
	Restrict   bool
	Cancel     bool
	SwearTerms []string
}

// Blocked reports whether any stage blocked the message.
func (r Result) Blocked() bool { return len(r.Blocks) > 0 }

// Tags returns the chat log tags of every blocking stage, in order.
func (r Result) Tags() []string {
	tags := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		tags = append(tags, b.Tag)
	}
	return tags
}

// Chain runs its stages in order. Each stage sees the text as edited by the
// previous one; a CancelMessage block stops the chain.
type Chain struct {
	stages []Stage
}

// NewChain builds a chain. Stages run in the order given.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Stages returns the configured stages.
func (c *Chain) Stages() []Stage { return c.stages }

// Evaluate moderates text sent by player.
func (c *Chain) Evaluate(perms permission.Oracle, player, text string) Result {
	res := Result{Text: text}
	for _, st := range c.stages {
		if perms != nil && perms.HasPermission(player, st.BypassNode()) {
			continue
		}
		v := st.Filter.Evaluate(res.Text)
		if !v.Blocked {
			continue
		}
		v.Mode = st.Mode
		res.Text = v.Edited
		res.Blocks = append(res.Blocks, Block{Kind: st.Filter.Kind(), Tag: st.Tag(), Verdict: v})
		if st.Filter.Kind() == KindSwear {
			res.SwearTerms = append(res.SwearTerms, v.Terms...)
		}

		switch st.Mode {
		case CancelMessage:
			res.Cancel = true
			return res
		case RestrictToSender:
			res.Restrict = true
		}
	}
	return res
}
