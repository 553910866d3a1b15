package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chatty/chat-relay/internal/chatlog"
	"github.com/chatty/chat-relay/internal/metrics"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

// consume returns the NATS handler that stores each published entry.
func consume(store *chatlog.Store, logger *zap.Logger) func(data []byte) {
	return func(data []byte) {
		e, err := chatlog.Decode(data)
		if err != nil {
			logger.Warn("decode entry", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Insert(ctx, e); err != nil {
			logger.Error("store entry", zap.String("player", e.Player), zap.Error(err))
			return
		}
		logger.Debug(e.Line(), zap.String("node", e.Node), zap.String("channel", e.Channel))
	}
}

func routes(store *chatlog.Store, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /recent", recent(store, logger))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// recent serves GET /recent?player=<name>&limit=<n>.
func recent(store *chatlog.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := r.URL.Query().Get("player")
		if player == "" {
			http.Error(w, "player is required", http.StatusBadRequest)
			return
		}
		limit := defaultRecent
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, maxRecent)
		}

		entries, err := store.Recent(r.Context(), player, limit)
		if err != nil {
			logger.Error("recent entries", zap.String("player", player), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []chatlog.Entry{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
