package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/chatlog"
	"github.com/chatty/chat-relay/internal/config"
	"github.com/chatty/chat-relay/internal/logging"
	"github.com/chatty/chat-relay/internal/messaging"
)

func main() {
	logger, err := logging.New("chatlog", false)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	loader, err := config.NewLoader("", logger.Named("config"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	cfg := loader.Config()
	if cfg.General.Debug {
		if l, err := logging.New("chatlog", true); err == nil {
			logger = l
		}
	}
	defer logger.Sync() //nolint:errcheck

	// PostgreSQL setup.
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("open postgres", zap.Error(err))
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	pingCancel()
	if err := chatlog.Migrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	store := chatlog.NewStore(db)

	// NATS setup. Echo stays on: this process never publishes entries.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Name = "chatty-chatlog"
	natsConfig.NoEcho = false
	natsClient, err := messaging.NewNATSClient(natsConfig, logger.Named("nats"))
	if err != nil {
		logger.Fatal("connect to nats", zap.Error(err))
	}

	if err := natsClient.SubscribeChatLog(cfg.ChatLog.Queue, consume(store, logger)); err != nil {
		logger.Fatal("subscribe to chat log", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ChatLog.Listen,
		Handler:           routes(store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
		}
	}()

	logger.Info("chat log service running",
		zap.String("listen", cfg.ChatLog.Listen),
		zap.String("queue", cfg.ChatLog.Queue),
		zap.String("nats", cfg.NATS.URL))

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	natsClient.Close()
	if err := db.Close(); err != nil {
		logger.Error("postgres close", zap.Error(err))
	}
}
