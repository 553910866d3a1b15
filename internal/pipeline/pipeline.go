// Package pipeline runs one chat message through channel resolution,
// cooldown and economy gates, moderation, recipient resolution,
// composition and fan-out.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/chatlog"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/cooldown"
	"github.com/chatty/chat-relay/internal/economy"
	"github.com/chatty/chat-relay/internal/metrics"
	"github.com/chatty/chat-relay/internal/moderation"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/recipient"
	"github.com/chatty/chat-relay/internal/relay"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/scheduler"
	"github.com/chatty/chat-relay/internal/spy"
)

// NoticeDelay is how many ticks sender notices about moderation and empty
// audiences wait, so they arrive after the message itself.
const NoticeDelay = 5

// Forwarder sends finalized messages to peer nodes.
type Forwarder interface {
	Send(ch *channel.Channel, text string, rich bool) error
}

// Options wires a Pipeline. Economy, Spy, Forwarder and Recorder are
// optional.
type Options struct {
	Channels  *channel.Registry
	Perms     permission.Oracle
	Cooldowns cooldown.Ledger
	Economy   economy.Ledger
	Resolver  *recipient.Resolver
	Chain     *moderation.Chain
	Composer  *compose.Composer
	Messages  compose.Messages
	Spy       *spy.Relay
	Forwarder Forwarder
	Recorder  *chatlog.Recorder
	Scheduler scheduler.Scheduler
	Sink      relay.Sink
	Logger    *zap.Logger
}

// Pipeline processes chat messages. Handle is safe for concurrent use; the
// moderation chain, composer and messages can be swapped while it runs.
type Pipeline struct {
	channels  *channel.Registry
	perms     permission.Oracle
	cooldowns cooldown.Ledger
	economy   economy.Ledger
	resolver  *recipient.Resolver
	spy       *spy.Relay
	forwarder Forwarder
	recorder  *chatlog.Recorder
	sched     scheduler.Scheduler
	sink      relay.Sink
	logger    *zap.Logger

	chain    atomic.Pointer[moderation.Chain]
	composer atomic.Pointer[compose.Composer]
	messages atomic.Pointer[compose.Messages]
}

// New validates opts and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Channels == nil:
		return nil, errors.New("pipeline: channel registry is required")
	case opts.Perms == nil:
		return nil, errors.New("pipeline: permission oracle is required")
	case opts.Cooldowns == nil:
		return nil, errors.New("pipeline: cooldown ledger is required")
	case opts.Resolver == nil:
		return nil, errors.New("pipeline: recipient resolver is required")
	case opts.Composer == nil:
		return nil, errors.New("pipeline: composer is required")
	case opts.Scheduler == nil || opts.Sink == nil:
		return nil, errors.New("pipeline: scheduler and sink are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Chain == nil {
		opts.Chain = moderation.NewChain()
	}

	p := &Pipeline{
		channels:  opts.Channels,
		perms:     opts.Perms,
		cooldowns: opts.Cooldowns,
		economy:   opts.Economy,
		resolver:  opts.Resolver,
		spy:       opts.Spy,
		forwarder: opts.Forwarder,
		recorder:  opts.Recorder,
		sched:     opts.Scheduler,
		sink:      opts.Sink,
		logger:    opts.Logger,
	}
	p.SetChain(opts.Chain)
	p.SetComposer(opts.Composer)
	p.SetMessages(opts.Messages)
	return p, nil
}

// SetChain swaps the moderation chain.
func (p *Pipeline) SetChain(c *moderation.Chain) { p.chain.Store(c) }

// SetComposer swaps the composer.
func (p *Pipeline) SetComposer(c *compose.Composer) { p.composer.Store(c) }

// SetMessages swaps the notice templates. Missing keys use defaults.
func (p *Pipeline) SetMessages(m compose.Messages) {
	full := m.WithDefaults()
	p.messages.Store(&full)
}

// Messages returns the current notice templates.
func (p *Pipeline) Messages() compose.Messages { return *p.messages.Load() }

// Handle runs raw chat input from sender through the pipeline. The
// returned Outcome says where the message stopped. A message cancelled at
// any gate produces no output for other players, no cooldown and no relay.
func (p *Pipeline) Handle(ctx context.Context, sender roster.Player, raw string) Outcome {
	start := time.Now()
	out := p.handle(ctx, sender, raw)
	metrics.MessagesTotal.WithLabelValues(out.Status.String()).Inc()
	metrics.MessageLatency.Observe(time.Since(start).Seconds())
	return out
}

func (p *Pipeline) handle(ctx context.Context, sender roster.Player, raw string) Outcome {
	msgs := p.Messages()

	if err := ValidateMessage(raw); err != nil {
		p.logger.Debug("rejecting chat input", zap.String("player", sender.Name), zap.Error(err))
		p.notify(sender, msgs.Render("invalid-message"))
		return Outcome{Status: Invalid}
	}

	ch, text, ok := p.channels.Resolve(p.perms, sender.Name, raw)
	if !ok {
		p.notify(sender, msgs.Render("chat-not-found"))
		return Outcome{Status: NoChannel}
	}

	text = compose.Stylish(p.perms, sender.Name, ch.Name, text)
	if strings.TrimSpace(compose.StripColors(text)) == "" {
		return Outcome{Status: Empty}
	}

	ticket, remaining := p.reserve(ctx, sender, ch)
	if remaining > 0 {
		p.notify(sender, msgs.Render("cooldown", "cooldown", strconv.Itoa(cooldown.Seconds(remaining))))
		return Outcome{Status: OnCooldown, Remaining: remaining}
	}

	if !p.withdraw(ctx, sender, ch) {
		p.release(ctx, ticket)
		p.notify(sender, msgs.Render("not-enough-money", "money", strconv.FormatFloat(ch.Cost, 'f', -1, 64)))
		return Outcome{Status: InsufficientFunds}
	}

	mod := p.chain.Load().Evaluate(p.perms, sender.Name, text)
	for _, b := range mod.Blocks {
		metrics.ModerationBlocks.WithLabelValues(b.Kind, b.Verdict.Mode.String()).Inc()
		p.notifyLater(sender, msgs.Render(b.NoticeKey()))
	}
	if mod.Cancel {
		p.release(ctx, ticket)
		p.logger.Info("message cancelled by moderation",
			zap.String("player", sender.Name),
			zap.String("channel", ch.Name),
			zap.Strings("tags", mod.Tags()))
		return Outcome{Status: Cancelled}
	}

	recipients := p.resolver.Resolve(ch, sender)
	if len(recipients) <= 1 {
		p.notifyLater(sender, msgs.Render("no-recipients"))
	}
	if mod.Restrict {
		recipients = []roster.Player{sender}
	}

	p.commit(ctx, ticket)

	d := p.compose(ctx, sender, ch, mod, recipients)
	p.deliver(d)
	p.tap(d)
	p.record(d)

	metrics.Recipients.Observe(float64(len(recipients)))
	if d.Restricted() {
		return Outcome{Status: Restricted, Dispatch: d}
	}
	return Outcome{Status: Delivered, Dispatch: d}
}

// reserve places a cooldown reservation. A non-zero remaining means the
// sender is still cooling down. Ledger failures let the message through.
func (p *Pipeline) reserve(ctx context.Context, sender roster.Player, ch *channel.Channel) (*cooldown.Ticket, time.Duration) {
	if ch.Cooldown <= 0 || permission.Any(p.perms, sender.Name, ch.CooldownBypassNodes()...) {
		return nil, 0
	}
	key := cooldown.Key{Player: sender.Name, Channel: ch.Name}
	remaining, t, err := p.cooldowns.Reserve(ctx, key, time.Duration(ch.Cooldown)*time.Second)
	if err != nil {
		p.logger.Warn("cooldown reserve failed", zap.String("key", key.String()), zap.Error(err))
		return nil, 0
	}
	return t, remaining
}

func (p *Pipeline) commit(ctx context.Context, t *cooldown.Ticket) {
	if t == nil {
		return
	}
	if err := p.cooldowns.Commit(ctx, t); err != nil {
		p.logger.Warn("cooldown commit failed", zap.String("key", t.Key.String()), zap.Error(err))
	}
}

func (p *Pipeline) release(ctx context.Context, t *cooldown.Ticket) {
	if t == nil {
		return
	}
	if err := p.cooldowns.Release(ctx, t); err != nil {
		p.logger.Warn("cooldown release failed", zap.String("key", t.Key.String()), zap.Error(err))
	}
}

// withdraw charges the channel cost. Ledger errors count as a failed
// payment.
func (p *Pipeline) withdraw(ctx context.Context, sender roster.Player, ch *channel.Channel) bool {
	if ch.Cost <= 0 || p.economy == nil {
		return true
	}
	ok, err := p.economy.Withdraw(ctx, sender.Name, ch.Cost)
	if err != nil {
		p.logger.Warn("economy withdraw failed", zap.String("player", sender.Name), zap.Error(err))
		return false
	}
	return ok
}

func (p *Pipeline) compose(ctx context.Context, sender roster.Player, ch *channel.Channel, mod moderation.Result, recipients []roster.Player) *Dispatch {
	c := p.composer.Load()
	d := &Dispatch{
		Sender:     sender,
		Channel:    ch,
		Recipients: recipients,
		Text:       mod.Text,
		Moderation: mod,
		Legacy:     c.Legacy(ctx, sender, ch, mod.Text),
	}
	if c.InteractiveEnabled() {
		m := c.Interactive(ctx, sender, ch, mod.Text, mod.SwearTerms, false)
		d.Interactive = &m
		if len(mod.SwearTerms) > 0 {
			disclosed := c.Interactive(ctx, sender, ch, mod.Text, mod.SwearTerms, true)
			d.Disclosed = &disclosed
		}
	}
	return d
}

// deliver sends the message to every recipient as one scheduler task.
// Unrestricted messages are relayed from the same task once local delivery
// is done.
func (p *Pipeline) deliver(d *Dispatch) {
	p.sched.Submit(func() {
		for _, r := range d.Recipients {
			if d.Interactive == nil {
				p.sink.SendText(r, d.Legacy)
				continue
			}
			see := d.Disclosed != nil && p.perms.HasPermission(r.Name, compose.SwearsSeeNode)
			p.sink.SendRich(r, *d.messageFor(see))
		}
		if !d.Restricted() {
			p.forward(d)
		}
	})
}

func (p *Pipeline) tap(d *Dispatch) {
	if p.spy == nil {
		return
	}
	t, ok := p.spy.Tap(d.Channel, d.Recipients, d.Legacy)
	if !ok {
		return
	}
	p.sched.Submit(func() {
		for _, s := range t.Targets {
			p.sink.SendText(s, t.Line)
		}
	})
}

func (p *Pipeline) forward(d *Dispatch) {
	if p.forwarder == nil || d.Channel.Scope.Kind != channel.Network {
		return
	}
	text, rich := d.Legacy, false
	if d.Interactive != nil {
		data, err := json.Marshal(d.Interactive)
		if err != nil {
			p.logger.Error("encode interactive message", zap.Error(err))
			return
		}
		text, rich = string(data), true
	}
	if err := p.forwarder.Send(d.Channel, text, rich); err != nil {
		p.logger.Warn("relay send failed", zap.String("channel", d.Channel.Name), zap.Error(err))
	}
}

func (p *Pipeline) record(d *Dispatch) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(chatlog.Entry{
		PlayerID: d.Sender.ID,
		Player:   d.Sender.Name,
		Channel:  d.Channel.Name,
		Text:     compose.StripColors(d.Text),
		Tags:     d.Moderation.Tags(),
	})
}

// notify and notifyLater drop empty text, which is how a notice is
// switched off in the messages section.
func (p *Pipeline) notify(to roster.Player, text string) {
	if text == "" {
		return
	}
	p.sched.Submit(func() { p.sink.SendText(to, text) })
}

func (p *Pipeline) notifyLater(to roster.Player, text string) {
	if text == "" {
		return
	}
	p.sched.RunAfter(NoticeDelay, func() { p.sink.SendText(to, text) })
}
