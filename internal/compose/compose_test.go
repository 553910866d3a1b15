package compose

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
)

type props map[string]string

func (p props) Get(_ context.Context, player, key string) (string, bool, error) {
	if player == "broken" {
		return "", false, errors.New("redis down")
	}
	v, ok := p[player+"/"+key]
	return v, ok, nil
}

type ranks struct{}

func (ranks) Prefix(string) string { return "[Rank] " }
func (ranks) Suffix(string) string { return "" }

var steve = roster.Player{ID: uuid.New(), Name: "Steve", Position: roster.Position{World: "overworld"}}

func TestColorize(t *testing.T) {
	assert.Equal(t, "§cred &zkept", Colorize("&cred &zkept"))
	assert.Equal(t, "&cred", Uncolorize("§cred"))
	assert.Equal(t, "red bold", StripColors("§cred §lbold"))
	assert.Equal(t, "tail&", Colorize("tail&"))
}

func TestStylishHonoursPermissions(t *testing.T) {
	perms := permission.Static{
		"steve": {"chatty.style.colors"},
		"alex":  {"chatty.style.bold.global"},
	}
	assert.Equal(t, "§chi &lthere", Stylish(perms, "steve", "global", "&chi &lthere"))
	assert.Equal(t, "&chi §lthere", Stylish(perms, "alex", "global", "&chi &lthere"))
	assert.Equal(t, "&chi &lthere", Stylish(perms, "alex", "trade", "&chi &lthere"))
}

func TestLegacyFormat(t *testing.T) {
	ch := &channel.Channel{Name: "global", Format: "{prefix}&7{player}&f: {message}{suffix}"}

	c := NewComposer(props{"Steve/prefix": "&a[VIP] "}, zap.NewNop(), WithRanks(ranks{}))
	assert.Equal(t, "§a[VIP] §7Steve§f: hello {player}", c.Legacy(context.Background(), steve, ch, "hello {player}"))

	alex := roster.Player{Name: "Alex"}
	assert.Equal(t, "[Rank] §7Alex§f: hi", c.Legacy(context.Background(), alex, ch, "hi"))

	broken := roster.Player{Name: "broken"}
	assert.Equal(t, "[Rank] §7broken§f: hi", c.Legacy(context.Background(), broken, ch, "hi"))
}

func TestLegacyExpandsPlaceholders(t *testing.T) {
	ch := &channel.Channel{Name: "global", Format: "[%player_world%|%online%] {player}: {message}"}
	c := NewComposer(nil, zap.NewNop(), WithExpander(Builtin{Online: func() int { return 7 }}))
	assert.Equal(t, "[overworld|7] Steve: %online%", c.Legacy(context.Background(), steve, ch, "%online%"))
}

func TestParseLegacy(t *testing.T) {
	msg := ParseLegacy("&7[&cAdmin&7] &lSteve&r: hi", AltCodeChar)
	require.Len(t, msg.Parts, 5)
	assert.Equal(t, Part{Text: "[", Color: "gray"}, msg.Parts[0])
	assert.Equal(t, Part{Text: "Admin", Color: "red"}, msg.Parts[1])
	assert.Equal(t, Part{Text: "] ", Color: "gray"}, msg.Parts[2])
	assert.Equal(t, Part{Text: "Steve", Color: "gray", Bold: true}, msg.Parts[3])
	assert.Equal(t, Part{Text: ": hi"}, msg.Parts[4])
	assert.Equal(t, "[Admin] Steve: hi", msg.PlainText())
	assert.Equal(t, "§7[§cAdmin§7] §7§lSteve§r: hi", msg.Legacy())
}

func TestReplaceInheritsStyle(t *testing.T) {
	msg := ParseLegacy("&e<{player}> {player}", AltCodeChar)
	out := msg.Replace("{player}", Message{Parts: []Part{{Text: "Steve"}}})

	require.Len(t, out.Parts, 4)
	for _, p := range out.Parts {
		assert.Equal(t, "yellow", p.Color)
	}
	assert.Equal(t, "<Steve> Steve", out.PlainText())
}

func TestInteractive(t *testing.T) {
	ch := &channel.Channel{Name: "global", Format: "&7{player} {rank}&f: {message}"}
	c := NewComposer(nil, zap.NewNop(), WithInteractive(Interactive{
		Enable: true,
		Player: Actions{Tooltip: []string{"&eClick to message {player}"}, Suggest: "/msg {player} "},
		Replacements: []Replacement{
			{Token: "{rank}", Text: "&c[Mod]", Actions: Actions{Link: "https://example.org/{player}"}},
		},
		Swears: SwearDisclosure{Enable: true, Tooltip: []string{"&cHidden:", "- {word}"}, Suggest: "/warn {player} {word}"},
	}, "<swear>"))

	msg := c.Interactive(context.Background(), steve, ch, "you <swear> and <swear>", []string{"foo", "bar"}, true)
	assert.Equal(t, "Steve [Mod]: you <swear> and <swear>", msg.PlainText())

	var player, rank *Part
	var swears []Part
	for i := range msg.Parts {
		switch msg.Parts[i].Text {
		case "Steve":
			player = &msg.Parts[i]
		case "[Mod]":
			rank = &msg.Parts[i]
		case "<swear>":
			swears = append(swears, msg.Parts[i])
		}
	}
	require.NotNil(t, player)
	assert.Equal(t, &Event{Action: ActionSuggestCommand, Value: "/msg Steve "}, player.ClickEvent)
	assert.Equal(t, &Event{Action: ActionShowText, Value: "§eClick to message Steve"}, player.HoverEvent)
	assert.Equal(t, "gray", player.Color)

	require.NotNil(t, rank)
	assert.Equal(t, "red", rank.Color)
	assert.Equal(t, &Event{Action: ActionOpenURL, Value: "https://example.org/Steve"}, rank.ClickEvent)

	require.Len(t, swears, 2)
	for _, s := range swears {
		assert.Equal(t, "§cHidden:\n- foo\n- bar", s.HoverEvent.Value)
		assert.Equal(t, "/warn {player} foo, bar", s.ClickEvent.Value)
		assert.Equal(t, "white", s.Color)
	}

	hidden := c.Interactive(context.Background(), steve, ch, "you <swear>", []string{"foo"}, false)
	for _, p := range hidden.Parts {
		if p.Text == "<swear>" {
			assert.Nil(t, p.HoverEvent)
		}
	}
}

func TestReplacementWithoutTextKeepsToken(t *testing.T) {
	ch := &channel.Channel{Name: "global", Format: "[Shop] {player}: {message}"}
	c := NewComposer(nil, zap.NewNop(), WithInteractive(Interactive{
		Enable:       true,
		Replacements: []Replacement{{Token: "[Shop]", Actions: Actions{Command: "/shop"}}},
	}, ""))

	assert.Equal(t, "[Shop] Steve: hi", c.Legacy(context.Background(), steve, ch, "hi"))
	msg := c.Interactive(context.Background(), steve, ch, "hi", nil, false)
	assert.Equal(t, "[Shop] Steve: hi", msg.PlainText())

	var shop *Part
	for i := range msg.Parts {
		if msg.Parts[i].Text == "[Shop]" {
			shop = &msg.Parts[i]
		}
	}
	require.NotNil(t, shop)
	assert.Equal(t, &Event{Action: ActionRunCommand, Value: "/shop"}, shop.ClickEvent)
}

func TestMessageJSON(t *testing.T) {
	msg := Message{Parts: []Part{
		{Text: "Steve", Color: "gray", ClickEvent: &Event{Action: ActionRunCommand, Value: "/p Steve"}},
		{Text: ": hi"},
	}}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"","extra":[{"text":"Steve","color":"gray","clickEvent":{"action":"run_command","value":"/p Steve"}},{"text":": hi"}]}`, string(data))

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, msg, back)

	require.NoError(t, json.Unmarshal([]byte(`{"text":"root"}`), &back))
	assert.Equal(t, "root", back.PlainText())
}

func TestGroupRanks(t *testing.T) {
	g := permission.NewGroups(nil)
	g.Assign("steve", "vip")
	r := GroupRanks{Groups: g, Ranks: map[string]Rank{"vip": {Prefix: "&6[VIP] "}}}
	assert.Equal(t, "&6[VIP] ", r.Prefix("Steve"))
	assert.Equal(t, "", r.Prefix("alex"))
}

func TestMessagesRender(t *testing.T) {
	m := Messages{"cooldown": "&cWait {cooldown}s"}.WithDefaults()
	assert.Equal(t, "§cWait 3s", m.Render("cooldown", "cooldown", "3"))
	assert.Equal(t, "§cNobody heard you.", m.Render("no-recipients"))
	assert.Equal(t, "missing.key", m.Render("missing.key"))
}
