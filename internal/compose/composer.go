package compose

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/roster"
)

// Template tokens.
const (
	TokenPlayer  = "{player}"
	TokenMessage = "{message}"
	TokenPrefix  = "{prefix}"
	TokenSuffix  = "{suffix}"
	TokenWord    = "{word}"
)

// SwearsSeeNode lets a viewer see which words were replaced.
const SwearsSeeNode = "chatty.swears.see"

// Expander fills in host placeholders such as %player_name%.
type Expander interface {
	Expand(p roster.Player, text string) string
}

// Properties reads permanent per-player properties.
type Properties interface {
	Get(ctx context.Context, player, key string) (string, bool, error)
}

// RankProvider supplies a prefix and suffix when the player has none stored.
type RankProvider interface {
	Prefix(player string) string
	Suffix(player string) string
}

// Replacement rebinds a named token in the interactive message.
type Replacement struct {
	Token string
	Text  string
	Actions
}

// SwearDisclosure shows moderators the words hidden behind the profanity
// replacement token.
type SwearDisclosure struct {
	Enable  bool
	Tooltip []string
	Suggest string
}

// Interactive configures the part model.
type Interactive struct {
	Enable       bool
	Player       Actions
	Replacements []Replacement
	Swears       SwearDisclosure
}

// Composer renders messages. The zero Interactive disables the part model.
type Composer struct {
	props       Properties
	ranks       RankProvider
	expander    Expander
	interactive Interactive
	swearToken  string
	logger      *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithRanks sets the rank collaborator consulted after stored properties.
func WithRanks(r RankProvider) Option { return func(c *Composer) { c.ranks = r } }

// WithExpander sets the placeholder collaborator.
func WithExpander(e Expander) Option { return func(c *Composer) { c.expander = e } }

// WithInteractive enables the part model. swearToken is the profanity
// replacement that disclosure rebinds.
func WithInteractive(i Interactive, swearToken string) Option {
	return func(c *Composer) {
		c.interactive = i
		c.swearToken = swearToken
	}
}

// NewComposer creates a Composer reading prefixes from props, which may be
// nil.
func NewComposer(props Properties, logger *zap.Logger, opts ...Option) *Composer {
	c := &Composer{props: props, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// InteractiveEnabled reports whether Interactive renders anything.
func (c *Composer) InteractiveEnabled() bool { return c.interactive.Enable }

// affix returns the stored property, the rank value, or "".
func (c *Composer) affix(ctx context.Context, player, key string) string {
	if c.props != nil {
		v, ok, err := c.props.Get(ctx, player, key)
		if err != nil {
			c.logger.Warn("property lookup failed", zap.String("player", player), zap.String("key", key), zap.Error(err))
		} else if ok {
			return v
		}
	}
	if c.ranks == nil {
		return ""
	}
	if key == "prefix" {
		return c.ranks.Prefix(player)
	}
	return c.ranks.Suffix(player)
}

func (c *Composer) expand(p roster.Player, s string) string {
	if c.expander == nil {
		return s
	}
	return c.expander.Expand(p, s)
}

// template resolves prefix, suffix, colours and placeholders, leaving the
// {player} and {message} tokens in place.
func (c *Composer) template(ctx context.Context, sender roster.Player, ch *channel.Channel) string {
	f := ch.Format
	f = strings.ReplaceAll(f, TokenPrefix, c.affix(ctx, sender.Name, "prefix"))
	f = strings.ReplaceAll(f, TokenSuffix, c.affix(ctx, sender.Name, "suffix"))
	f = Colorize(f)
	return c.expand(sender, f)
}

// Legacy renders the colour-coded line. The message text is substituted
// last so tokens typed by the player stay literal.
func (c *Composer) Legacy(ctx context.Context, sender roster.Player, ch *channel.Channel, text string) string {
	f := c.template(ctx, sender, ch)
	f = strings.ReplaceAll(f, TokenPlayer, sender.Name)
	return strings.ReplaceAll(f, TokenMessage, text)
}

// Interactive renders the part model. When disclose is set every
// occurrence of the profanity token carries a tooltip listing terms.
func (c *Composer) Interactive(ctx context.Context, sender roster.Player, ch *channel.Channel, text string, terms []string, disclose bool) Message {
	cfg := c.interactive
	msg := ParseLegacy(Uncolorize(c.template(ctx, sender, ch)), AltCodeChar)

	msg = msg.Replace(TokenPlayer, c.bind(sender, sender.Name, cfg.Player))
	for _, r := range cfg.Replacements {
		// Without text the token keeps its own wording and only gains events.
		text := r.Text
		if text == "" {
			text = r.Token
		}
		msg = msg.Replace(r.Token, c.bind(sender, text, r.Actions))
	}
	msg = msg.Replace(TokenMessage, ParseLegacy(text, CodeChar))

	if disclose && cfg.Swears.Enable && len(terms) > 0 && c.swearToken != "" {
		joined := strings.Join(terms, ", ")
		var tooltip []string
		for _, line := range cfg.Swears.Tooltip {
			if strings.Contains(line, TokenWord) {
				for _, t := range terms {
					tooltip = append(tooltip, Colorize(strings.ReplaceAll(line, TokenWord, t)))
				}
				continue
			}
			tooltip = append(tooltip, Colorize(line))
		}
		a := Actions{Tooltip: tooltip, Suggest: strings.ReplaceAll(cfg.Swears.Suggest, TokenWord, joined)}
		msg = msg.Replace(c.swearToken, Message{Parts: []Part{{Text: c.swearToken}}}.WithActions(a))
	}
	return msg
}

// bind renders text as parts carrying a's events, with {player} and
// placeholders resolved in every field.
func (c *Composer) bind(sender roster.Player, text string, a Actions) Message {
	sub := func(s string) string {
		return c.expand(sender, strings.ReplaceAll(s, TokenPlayer, sender.Name))
	}
	resolved := Actions{Command: sub(a.Command), Suggest: sub(a.Suggest), Link: sub(a.Link)}
	for _, line := range a.Tooltip {
		resolved.Tooltip = append(resolved.Tooltip, Colorize(sub(line)))
	}
	return ParseLegacy(sub(text), AltCodeChar).WithActions(resolved)
}

// Builtin expands a small set of placeholders without a host plugin.
type Builtin struct {
	Online func() int
}

func (b Builtin) Expand(p roster.Player, text string) string {
	if !strings.Contains(text, "%") {
		return text
	}
	pairs := []string{"%player_name%", p.Name, "%player_world%", p.Position.World}
	if b.Online != nil {
		pairs = append(pairs, "%online%", strconv.Itoa(b.Online()))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Rank is a configured prefix and suffix.
type Rank struct {
	Prefix string `mapstructure:"prefix"`
	Suffix string `mapstructure:"suffix"`
}

// GroupRanks maps permission groups onto ranks.
type GroupRanks struct {
	Groups *permission.Groups
	Ranks  map[string]Rank
}

func (g GroupRanks) Prefix(player string) string { return g.Ranks[g.Groups.GroupOf(player)].Prefix }
func (g GroupRanks) Suffix(player string) string { return g.Ranks[g.Groups.GroupOf(player)].Suffix }
