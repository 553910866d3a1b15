// Package config loads chatty.yml and environment overrides, and turns
// them into the runtime objects the node is built from.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/moderation"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/spy"
)

// Config is the decoded configuration.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	ChatLog     ChatLogConfig     `mapstructure:"chatlog"`
	Cooldown    CooldownConfig    `mapstructure:"cooldown"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Chats       []ChatConfig      `mapstructure:"chats"`
	Moderation  ModerationConfig  `mapstructure:"moderation"`
	Interactive InteractiveConfig `mapstructure:"interactive"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	// Ranks maps permission group names onto prefix and suffix.
	Ranks map[string]compose.Rank `mapstructure:"ranks"`

	// Messages is filled from the flattened messages section, with
	// defaults for missing keys.
	Messages compose.Messages `mapstructure:"-"`
}

type GeneralConfig struct {
	Debug         bool                `mapstructure:"debug"`
	Resolution    string              `mapstructure:"resolution"`
	PrefixCommand PrefixCommandConfig `mapstructure:"prefix-command"`
	Spy           SpyConfig           `mapstructure:"spy"`
}

type PrefixCommandConfig struct {
	AfterPrefix string `mapstructure:"after-prefix"`
}

type SpyConfig struct {
	Enable bool   `mapstructure:"enable"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Listen         string `mapstructure:"listen"`
	Node           string `mapstructure:"node"`
	Workers        int    `mapstructure:"workers"`
	MaxConnections int    `mapstructure:"max-connections"`
	// FrameRate limits inbound frames per connection per second.
	FrameRate  float64 `mapstructure:"frame-rate"`
	FrameBurst int     `mapstructure:"frame-burst"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ChatLogConfig is read by the chat log consumer only.
type ChatLogConfig struct {
	Listen string `mapstructure:"listen"`
	// Queue is the NATS queue group shared by consumer replicas.
	Queue string `mapstructure:"queue"`
}

type CooldownConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
}

type RelayConfig struct {
	Enable bool   `mapstructure:"enable"`
	Tag    string `mapstructure:"tag"`
}

// ChatConfig is one entry of the chats list. List order is the order the
// resolution policy walks. A chat without an enable key is enabled.
type ChatConfig struct {
	Name       string  `mapstructure:"name"`
	Enable     *bool   `mapstructure:"enable"`
	Symbol     string  `mapstructure:"symbol"`
	Format     string  `mapstructure:"format"`
	Permission bool    `mapstructure:"permission"`
	Cooldown   int     `mapstructure:"cooldown"`
	Money      float64 `mapstructure:"money"`
	Scope      string  `mapstructure:"scope"`
	Distance   float64 `mapstructure:"distance"`
}

type ModerationConfig struct {
	Swear         SwearConfig         `mapstructure:"swear"`
	Caps          CapsConfig          `mapstructure:"caps"`
	Advertisement AdvertisementConfig `mapstructure:"advertisement"`
}

type SwearConfig struct {
	Enable        bool   `mapstructure:"enable"`
	Mode          string `mapstructure:"mode"`
	Replacement   string `mapstructure:"replacement"`
	WordsFile     string `mapstructure:"words-file"`
	WhitelistFile string `mapstructure:"whitelist-file"`
}

type CapsConfig struct {
	Enable  bool   `mapstructure:"enable"`
	Mode    string `mapstructure:"mode"`
	Percent int    `mapstructure:"percent"`
	Length  int    `mapstructure:"length"`
}

type AdvertisementConfig struct {
	Enable      bool     `mapstructure:"enable"`
	Mode        string   `mapstructure:"mode"`
	Replacement string   `mapstructure:"replacement"`
	IPPattern   string   `mapstructure:"ip-pattern"`
	WebPattern  string   `mapstructure:"web-pattern"`
	Whitelist   []string `mapstructure:"whitelist"`
}

type ActionsConfig struct {
	Tooltip []string `mapstructure:"tooltip"`
	Command string   `mapstructure:"command"`
	Suggest string   `mapstructure:"suggest"`
	Link    string   `mapstructure:"link"`
}

func (a ActionsConfig) actions() compose.Actions {
	return compose.Actions{Tooltip: a.Tooltip, Command: a.Command, Suggest: a.Suggest, Link: a.Link}
}

type ReplacementConfig struct {
	Token         string `mapstructure:"token"`
	Text          string `mapstructure:"text"`
	ActionsConfig `mapstructure:",squash"`
}

type InteractiveConfig struct {
	Enable       bool                `mapstructure:"enable"`
	Player       ActionsConfig       `mapstructure:"player"`
	Replacements []ReplacementConfig `mapstructure:"replacements"`
	Swears       SwearsConfig        `mapstructure:"swears"`
}

type SwearsConfig struct {
	Enable  bool     `mapstructure:"enable"`
	Tooltip []string `mapstructure:"tooltip"`
	Suggest string   `mapstructure:"suggest"`
}

type PermissionsConfig struct {
	// Default is the group of players without a stored group property.
	Default string                      `mapstructure:"default"`
	Groups  map[string]permission.Group `mapstructure:"groups"`
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("server.workers must be positive"))
	}
	switch c.Cooldown.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cooldown.backend must be memory or redis, got %q", c.Cooldown.Backend))
	}
	if _, err := channel.ParsePolicy(c.General.Resolution); err != nil {
		errs = append(errs, err)
	}
	if len(c.Chats) == 0 {
		errs = append(errs, errors.New("at least one chat must be configured"))
	}
	if chans, err := c.Channels(); err != nil {
		errs = append(errs, err)
	} else if _, err := channel.NewRegistry(chans, channel.LastMatch); err != nil {
		errs = append(errs, err)
	}
	for name, mode := range map[string]string{
		"swear":         c.Moderation.Swear.Mode,
		"caps":          c.Moderation.Caps.Mode,
		"advertisement": c.Moderation.Advertisement.Mode,
	} {
		if _, err := moderation.ParseMode(mode); err != nil {
			errs = append(errs, fmt.Errorf("moderation.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Policy returns the channel resolution policy.
func (c *Config) Policy() (channel.Policy, error) {
	return channel.ParsePolicy(c.General.Resolution)
}

// Channels converts the chats list.
func (c *Config) Channels() ([]channel.Channel, error) {
	out := make([]channel.Channel, 0, len(c.Chats))
	for _, cc := range c.Chats {
		kind, err := channel.ParseScope(cc.Scope)
		if err != nil {
			return nil, fmt.Errorf("chat %q: %w", cc.Name, err)
		}
		out = append(out, channel.Channel{
			Name:       strings.TrimSpace(cc.Name),
			Symbol:     cc.Symbol,
			Format:     cc.Format,
			Permission: cc.Permission,
			Enabled:    cc.Enable == nil || *cc.Enable,
			Cooldown:   cc.Cooldown,
			Cost:       cc.Money,
			Scope:      channel.Scope{Kind: kind, Distance: cc.Distance},
		})
	}
	return out, nil
}

// Chain builds the moderation chain in profanity, caps, advertisement
// order. The profanity filter is owned by the caller so its word lists
// survive rebuilds; it is only used when swear moderation is enabled.
func (c *Config) Chain(profanity *moderation.Profanity) (*moderation.Chain, error) {
	m := c.Moderation
	var stages []moderation.Stage

	if m.Swear.Enable && profanity != nil {
		mode, err := moderation.ParseMode(m.Swear.Mode)
		if err != nil {
			return nil, err
		}
		stages = append(stages, moderation.Stage{Filter: profanity, Mode: mode})
	}
	if m.Caps.Enable {
		mode, err := moderation.ParseMode(m.Caps.Mode)
		if err != nil {
			return nil, err
		}
		stages = append(stages, moderation.Stage{Filter: moderation.NewCaps(m.Caps.Percent, m.Caps.Length), Mode: mode})
	}
	if m.Advertisement.Enable {
		mode, err := moderation.ParseMode(m.Advertisement.Mode)
		if err != nil {
			return nil, err
		}
		ads, err := moderation.NewAdvertisement(m.Advertisement.IPPattern, m.Advertisement.WebPattern,
			m.Advertisement.Whitelist, m.Advertisement.Replacement)
		if err != nil {
			return nil, err
		}
		stages = append(stages, moderation.Stage{Filter: ads, Mode: mode})
	}
	return moderation.NewChain(stages...), nil
}

// InteractiveSettings converts the interactive section.
func (c *Config) InteractiveSettings() compose.Interactive {
	ic := c.Interactive
	out := compose.Interactive{
		Enable: ic.Enable,
		Player: ic.Player.actions(),
		Swears: compose.SwearDisclosure{
			Enable:  ic.Swears.Enable,
			Tooltip: ic.Swears.Tooltip,
			Suggest: ic.Swears.Suggest,
		},
	}
	for _, r := range ic.Replacements {
		out.Replacements = append(out.Replacements, compose.Replacement{Token: r.Token, Text: r.Text, Actions: r.actions()})
	}
	return out
}

// SpySettings converts general.spy.
func (c *Config) SpySettings() spy.Settings {
	return spy.Settings{Enable: c.General.Spy.Enable, Format: c.General.Spy.Format}
}
