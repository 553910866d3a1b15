package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/channel"
	"github.com/chatty/chat-relay/internal/chatlog"
	"github.com/chatty/chat-relay/internal/command"
	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/config"
	"github.com/chatty/chat-relay/internal/cooldown"
	"github.com/chatty/chat-relay/internal/economy"
	"github.com/chatty/chat-relay/internal/logging"
	"github.com/chatty/chat-relay/internal/messaging"
	"github.com/chatty/chat-relay/internal/moderation"
	"github.com/chatty/chat-relay/internal/permission"
	"github.com/chatty/chat-relay/internal/pipeline"
	"github.com/chatty/chat-relay/internal/recipient"
	"github.com/chatty/chat-relay/internal/relay"
	"github.com/chatty/chat-relay/internal/roster"
	"github.com/chatty/chat-relay/internal/scheduler"
	"github.com/chatty/chat-relay/internal/session"
	"github.com/chatty/chat-relay/internal/spy"
	"github.com/chatty/chat-relay/internal/storage"
	"github.com/chatty/chat-relay/internal/ws"
)

func main() {
	logger, err := logging.New("chatserver", false)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	loader, err := config.NewLoader("", logger.Named("config"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	cfg := loader.Config()
	if cfg.General.Debug {
		if l, err := logging.New("chatserver", true); err == nil {
			logger = l
		}
	}
	defer logger.Sync() //nolint:errcheck

	nodeName := cfg.Server.Node
	if nodeName == "" {
		nodeName, _ = os.Hostname()
	}
	if nodeName == "" {
		nodeName = "chatty-1"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal("connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	pingCancel()

	sessions := session.NewStore(rdb, nodeName)
	store := storage.NewRedisStore(rdb)
	wallet := economy.NewRedisLedger(rdb)

	var cooldowns cooldown.Ledger
	if cfg.Cooldown.Backend == "redis" {
		cooldowns = cooldown.NewRedisLedger(rdb)
	} else {
		mem := cooldown.NewMemoryLedger()
		cooldowns = mem
		go sweepCooldowns(ctx, mem, logger.Named("cooldown"))
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Name = nodeName
	natsClient, err := messaging.NewNATSClient(natsConfig, logger.Named("nats"))
	if err != nil {
		logger.Fatal("connect to nats", zap.String("url", cfg.NATS.URL), zap.Error(err))
	}

	// --- Chat state ---
	players := roster.New()
	groups := permission.NewGroups(cfg.Permissions.Groups)
	resolver := recipient.NewResolver(players, groups)
	spyRelay := spy.NewRelay(players, groups, cfg.SpySettings())

	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal("resolution policy", zap.Error(err))
	}
	chans, err := cfg.Channels()
	if err != nil {
		logger.Fatal("channels", zap.Error(err))
	}
	registry, err := channel.NewRegistry(chans, policy)
	if err != nil {
		logger.Fatal("channel registry", zap.Error(err))
	}

	swear := cfg.Moderation.Swear
	words, err := moderation.LoadWordFilterSet(swear.WordsFile, swear.WhitelistFile)
	if err != nil {
		logger.Warn("load word lists", zap.Error(err))
	}
	profanity := moderation.NewProfanity(words, swear.Replacement)
	go func() {
		if err := moderation.Watch(ctx, profanity, swear.WordsFile, swear.WhitelistFile, logger.Named("moderation")); err != nil {
			logger.Warn("word list watcher stopped", zap.Error(err))
		}
	}()
	chain, err := cfg.Chain(profanity)
	if err != nil {
		logger.Fatal("moderation chain", zap.Error(err))
	}

	newComposer := func(c *config.Config) *compose.Composer {
		return compose.NewComposer(store, logger.Named("compose"),
			compose.WithRanks(compose.GroupRanks{Groups: groups, Ranks: c.Ranks}),
			compose.WithExpander(compose.Builtin{Online: players.Count}),
			compose.WithInteractive(c.InteractiveSettings(), profanity.Replacement()),
		)
	}

	sched := scheduler.NewTickLoop(scheduler.DefaultTick, logger.Named("scheduler"))
	go sched.Run(ctx)

	// --- WebSocket host ---
	n := &node{
		players:      players,
		groups:       groups,
		store:        store,
		spy:          spyRelay,
		defaultGroup: func() string { return loader.Config().Permissions.Default },
		logger:       logger.Named("node"),
	}

	wsConfig := ws.DefaultServerConfig()
	wsConfig.ListenAddr = cfg.Server.Listen
	wsConfig.WorkerPoolSize = cfg.Server.Workers
	wsConfig.MaxConnections = cfg.Server.MaxConnections
	wsConfig.FrameRate = cfg.Server.FrameRate
	wsConfig.FrameBurst = cfg.Server.FrameBurst
	server := ws.NewServer(wsConfig, sessions, n, logger.Named("ws"))
	n.notify = server.Notice

	// --- Relay ---
	var forwarder pipeline.Forwarder
	if cfg.Relay.Enable {
		relayNode := relay.NewNode(natsClient, cfg.Relay.Tag, registry, resolver, sched, server, logger.Named("relay"))
		if err := relayNode.Start(); err != nil {
			logger.Fatal("start relay", zap.Error(err))
		}
		forwarder = relayNode
	}

	pipe, err := pipeline.New(pipeline.Options{
		Channels:  registry,
		Perms:     groups,
		Cooldowns: cooldowns,
		Economy:   wallet,
		Resolver:  resolver,
		Chain:     chain,
		Composer:  newComposer(cfg),
		Messages:  cfg.Messages,
		Spy:       spyRelay,
		Forwarder: forwarder,
		Recorder:  chatlog.NewRecorder(natsClient, nodeName, logger.Named("chatlog")),
		Scheduler: sched,
		Sink:      server,
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}
	n.pipeline = pipe

	commands := command.NewDispatcher(pipe.Messages)
	afterPrefix := func() string { return loader.Config().General.PrefixCommand.AfterPrefix }
	commands.Register(command.NewPrefix(store, players, groups, pipe.Messages, afterPrefix, logger.Named("command")), "prefix", "setprefix")
	commands.Register(command.NewSpy(spyRelay, groups, pipe.Messages), "spy")
	n.commands = commands

	frames := ws.NewMessageDispatcher(logger.Named("ws"))
	frames.SetServer(server)
	n.register(frames)
	n.frames = frames

	loader.Watch(func(c *config.Config) {
		applyConfig(c, registry, pipe, groups, spyRelay, profanity, newComposer, logger)
	})

	logger.Info("chat node starting",
		zap.String("node", nodeName),
		zap.String("listen", cfg.Server.Listen),
		zap.String("redis", cfg.Redis.Addr),
		zap.String("nats", cfg.NATS.URL),
		zap.String("cooldown_backend", cfg.Cooldown.Backend),
		zap.Int("chats", len(chans)),
		zap.Bool("relay", cfg.Relay.Enable),
		zap.String("config", loader.File()))

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("ws shutdown", zap.Error(err))
		}
		natsClient.Close()
		if err := rdb.Close(); err != nil {
			logger.Error("redis close", zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// applyConfig swaps reloadable state after a config change. Infra settings
// such as listen address and backends need a restart.
func applyConfig(
	c *config.Config,
	registry *channel.Registry,
	pipe *pipeline.Pipeline,
	groups *permission.Groups,
	spyRelay *spy.Relay,
	profanity *moderation.Profanity,
	newComposer func(*config.Config) *compose.Composer,
	logger *zap.Logger,
) {
	policy, err := c.Policy()
	if err == nil {
		var chans []channel.Channel
		if chans, err = c.Channels(); err == nil {
			err = registry.Reload(chans, policy)
		}
	}
	if err != nil {
		logger.Error("reload channels", zap.Error(err))
	}

	// The watcher keeps following the paths read at startup.
	words, err := moderation.LoadWordFilterSet(c.Moderation.Swear.WordsFile, c.Moderation.Swear.WhitelistFile)
	if err != nil {
		logger.Warn("reload word lists", zap.Error(err))
	}
	profanity.SetWords(words)

	if chain, err := c.Chain(profanity); err != nil {
		logger.Error("reload moderation", zap.Error(err))
	} else {
		pipe.SetChain(chain)
	}

	groups.SetGroups(c.Permissions.Groups)
	spyRelay.SetSettings(c.SpySettings())
	pipe.SetComposer(newComposer(c))
	pipe.SetMessages(c.Messages)
	logger.Info("configuration applied", zap.Int("chats", len(c.Chats)))
}

// sweepCooldowns drops expired in-memory cooldown entries once a minute.
func sweepCooldowns(ctx context.Context, l *cooldown.MemoryLedger, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				logger.Debug("swept cooldowns", zap.Int("expired", n))
			}
		}
	}
}
