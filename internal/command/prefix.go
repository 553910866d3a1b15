package command

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/storage"
)

// Permission nodes of the prefix command.
const (
	PrefixNode       = "chatty.command.prefix"
	PrefixOthersNode = "chatty.command.prefix.others"
)

// ClearArg removes the stored prefix.
const ClearArg = "clear"

// Prefix sets or clears the stored chat prefix of an online player.
//
//	/prefix <player> <text...|clear>
type Prefix struct {
	store    storage.Store
	players  *roster.Roster
	perms    permission.Oracle
	messages Catalog
	// afterPrefix returns the text appended to every stored prefix.
	afterPrefix func() string
	logger      *zap.Logger
}

// NewPrefix creates the prefix command.
func NewPrefix(store storage.Store, players *roster.Roster, perms permission.Oracle, messages Catalog, afterPrefix func() string, logger *zap.Logger) *Prefix {
	if afterPrefix == nil {
		afterPrefix = func() string { return "" }
	}
	return &Prefix{
		store:       store,
		players:     players,
		perms:       perms,
		messages:    messages,
		afterPrefix: afterPrefix,
		logger:      logger,
	}
}

func (c *Prefix) Execute(ctx context.Context, caller roster.Player, label string, args []string) string {
	msgs := c.messages()
	if !c.perms.HasPermission(caller.Name, PrefixNode) {
		return msgs.Render("no-permission")
	}
	if len(args) < 2 {
		return msgs.Render("prefix-command.usage", "label", label)
	}

	target, ok := c.players.ByName(args[0])
	if !ok {
		return msgs.Render("prefix-command.player-not-found")
	}
	if target.ID != caller.ID && !c.perms.HasPermission(caller.Name, PrefixOthersNode) {
		return msgs.Render("prefix-command.no-permission-others")
	}

	if len(args) == 2 && strings.EqualFold(args[1], ClearArg) {
		if err := c.store.Delete(ctx, target.Name, storage.PropPrefix); err != nil {
			c.logger.Error("clear prefix", zap.String("player", target.Name), zap.Error(err))
			return ""
		}
		return msgs.Render("prefix-command.prefix-clear", "player", target.Name)
	}

	prefix := strings.Join(args[1:], " ") + c.afterPrefix()
	if err := c.store.Set(ctx, target.Name, storage.PropPrefix, prefix); err != nil {
		c.logger.Error("set prefix", zap.String("player", target.Name), zap.Error(err))
		return ""
	}
	return msgs.Render("prefix-command.prefix-set", "player", target.Name, "prefix", prefix)
}
