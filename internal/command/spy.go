package command

import (
	"context"

	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/spy"
)

// SpyNode allows toggling the spy copy.
const SpyNode = "chatty.command.spy"

// Spy toggles the spy copy for the caller.
type Spy struct {
	relay    *spy.Relay
	perms    permission.Oracle
	messages Catalog
}

func NewSpy(relay *spy.Relay, perms permission.Oracle, messages Catalog) *Spy {
	return &Spy{relay: relay, perms: perms, messages: messages}
}

func (c *Spy) Execute(_ context.Context, caller roster.Player, _ string, _ []string) string {
	msgs := c.messages()
	if !c.perms.HasPermission(caller.Name, SpyNode) {
		return msgs.Render("no-permission")
	}
	if c.relay.Toggle(caller.ID) {
		return msgs.Render("spy-command.enabled")
	}
	return msgs.Render("spy-command.disabled")
}
