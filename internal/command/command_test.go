package command

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/spy"
	"github.com/chatty/chat-relay/internal/storage"
)

var (
	steve = roster.Player{ID: uuid.New(), Name: "Steve"}
	alex  = roster.Player{ID: uuid.New(), Name: "Alex"}
)

func catalog() compose.Messages { return compose.Messages{}.WithDefaults() }

func setup(t *testing.T, perms permission.Oracle) (*Dispatcher, *storage.RedisStore, *spy.Relay) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := storage.NewRedisStore(client)

	players := roster.New()
	players.Add(steve)
	players.Add(alex)

	relay := spy.NewRelay(players, perms, spy.Settings{Enable: true})
	d := NewDispatcher(catalog)
	d.Register(NewPrefix(store, players, perms, catalog, func() string { return " " }, zap.NewNop()), "prefix", "setprefix")
	d.Register(NewSpy(relay, perms, catalog), "spy")
	return d, store, relay
}

func TestPrefixCommand(t *testing.T) {
	ctx := context.Background()
	perms := permission.Static{
		"steve": {PrefixNode, PrefixOthersNode},
		"alex":  {PrefixNode},
	}
	d, store, _ := setup(t, perms)
	m := catalog()

	tests := []struct {
		name   string
		caller roster.Player
		label  string
		args   []string
		reply  string
	}{
		{"usage", steve, "setprefix", []string{"Steve"}, m.Render("prefix-command.usage", "label", "setprefix")},
		{"unknown player", steve, "prefix", []string{"Herobrine", "x"}, m.Render("prefix-command.player-not-found")},
		{"others denied", alex, "prefix", []string{"Steve", "&c[X]"}, m.Render("prefix-command.no-permission-others")},
		{"set self", alex, "prefix", []string{"alex", "&a[VIP]"}, m.Render("prefix-command.prefix-set", "player", "Alex", "prefix", "&a[VIP] ")},
		{"set other", steve, "PREFIX", []string{"Alex", "&b[Mod]", "Team"}, m.Render("prefix-command.prefix-set", "player", "Alex", "prefix", "&b[Mod] Team ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reply, d.Dispatch(ctx, tt.caller, tt.label, tt.args))
		})
	}

	v, ok, err := store.Get(ctx, "alex", storage.PropPrefix)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "&b[Mod] Team ", v)

	assert.Equal(t, m.Render("prefix-command.prefix-clear", "player", "Alex"),
		d.Dispatch(ctx, alex, "prefix", []string{"Alex", "clear"}))
	_, ok, err = store.Get(ctx, "alex", storage.PropPrefix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrefixCommandNoPermission(t *testing.T) {
	d, _, _ := setup(t, permission.Static{})
	assert.Equal(t, catalog().Render("no-permission"),
		d.Dispatch(context.Background(), steve, "prefix", []string{"Steve", "x"}))
}

func TestSpyCommand(t *testing.T) {
	ctx := context.Background()
	d, _, relay := setup(t, permission.Static{"steve": {SpyNode}})
	m := catalog()

	assert.Equal(t, m.Render("spy-command.disabled"), d.Dispatch(ctx, steve, "/spy", nil))
	assert.False(t, relay.Enabled(steve.ID))
	assert.Equal(t, m.Render("spy-command.enabled"), d.Dispatch(ctx, steve, "spy", nil))
	assert.True(t, relay.Enabled(steve.ID))

	assert.Equal(t, m.Render("no-permission"), d.Dispatch(ctx, alex, "spy", nil))
	assert.True(t, relay.Enabled(alex.ID))
}

func TestUnknownCommand(t *testing.T) {
	d, _, _ := setup(t, permission.Static{})
	assert.Equal(t, catalog().Render("unknown-command"), d.Dispatch(context.Background(), steve, "fly", nil))
}
