package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/loadtest/client"
	"github.com/chatty/chat-relay/loadtest/stats"
)

// probePrefix marks load test lines so receivers can find the send time.
const probePrefix = "lt"

// runBroadcast has every player chat on one channel and measures how long
// each line takes to reach every recipient.
func runBroadcast(args []string) {
	fs := flag.NewFlagSet("broadcast", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	metricsURL := fs.String("metrics", "", "Node /metrics URL to scrape (optional)")
	players := fs.Int("players", 100, "Number of players")
	messages := fs.Int("messages", 10, "Lines sent per player")
	interval := fs.Duration("interval", 500*time.Millisecond, "Delay between a player's lines")
	symbol := fs.String("symbol", "", "Channel symbol to prefix lines with")
	drain := fs.Duration("drain", 3*time.Second, "Wait after the last send for deliveries")
	prefix := fs.String("prefix", "bc", "Player name prefix")
	_ = fs.Parse(args)

	fmt.Printf("Broadcast: %d players x %d lines to %s (interval=%s, symbol=%q)\n",
		*players, *messages, *url, *interval, *symbol)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	if *metricsURL != "" {
		scraper := stats.NewScraper(*metricsURL, time.Second)
		scraper.Start(ctx)
		defer scraper.Stop()
		collector.SetScraper(scraper)
	}

	clients := connectAll(ctx, collector, *url, *prefix, *players, time.Duration(*players)*10*time.Millisecond, 50)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	for _, c := range clients {
		c.On(protocol.TypeChat, func(raw json.RawMessage) {
			var msg protocol.ServerChatMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				return
			}
			if sent, ok := probeTime(msg.Text); ok {
				collector.Observe("delivery", time.Since(sent))
				collector.Count("delivered", 1)
			}
		})
		c.On(protocol.TypeNotice, func(json.RawMessage) { collector.Count("notices", 1) })
	}

	fmt.Println("\n--- Chat phase ---")
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *client.Client) {
			defer wg.Done()
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for range *messages {
				if err := c.Chat(probeLine(*symbol, time.Now())); err != nil {
					collector.AddError()
					return
				}
				collector.Count("sent", 1)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}(c)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
	case <-time.After(*drain):
	}

	var rateLimited int
	for _, c := range clients {
		rateLimited += c.Metrics().RateLimited
	}
	collector.Count("rate_limited", rateLimited)

	sent := collector.Counter("sent")
	want := sent * len(clients)
	got := collector.Counter("delivered")
	if want > 0 {
		fmt.Printf("\nDelivered %d/%d expected lines (%.1f%%)\n", got, want, float64(got)/float64(want)*100)
	}
	collector.Report()
}

func probeLine(symbol string, at time.Time) string {
	return fmt.Sprintf("%s%s %d", symbol, probePrefix, at.UnixNano())
}

// probeTime extracts the send time from a rendered line. The format may
// surround the message with anything, so only the last two words count.
func probeTime(line string) (time.Time, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasSuffix(fields[len(fields)-2], probePrefix) {
		return time.Time{}, false
	}
	ns, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
