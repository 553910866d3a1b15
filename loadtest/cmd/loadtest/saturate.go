package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chatty/chat-relay/loadtest/client"
	"github.com/chatty/chat-relay/loadtest/stats"
)

// runSaturate ramps up idle connections and holds them, reporting drops.
func runSaturate(args []string) {
	fs := flag.NewFlagSet("saturate", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	metricsURL := fs.String("metrics", "", "Node /metrics URL to scrape (optional)")
	connections := fs.Int("connections", 1000, "Number of connections to open")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration")
	hold := fs.Duration("hold", 30*time.Second, "Hold duration once all connections are open")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous dials")
	prefix := fs.String("prefix", "sat", "Player name prefix")
	_ = fs.Parse(args)

	fmt.Printf("Saturate: %d connections to %s (ramp=%s, hold=%s, concurrency=%d)\n",
		*connections, *url, *rampUp, *hold, *concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	if *metricsURL != "" {
		scraper := stats.NewScraper(*metricsURL, 2*time.Second)
		scraper.Start(ctx)
		defer scraper.Stop()
		collector.SetScraper(scraper)
	}

	clients := connectAll(ctx, collector, *url, *prefix, *connections, *rampUp, *concurrency)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	if ctx.Err() == nil {
		fmt.Printf("\n--- Hold phase: %d connections for %s ---\n", len(clients), *hold)
		holdTimer := time.NewTimer(*hold)
		status := time.NewTicker(5 * time.Second)
	holdLoop:
		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nInterrupted during hold.")
				break holdLoop
			case <-holdTimer.C:
				break holdLoop
			case <-status.C:
				alive := countAlive(clients)
				fmt.Printf("  [hold] alive: %d/%d  dropped: %d\n", alive, len(clients), len(clients)-alive)
			}
		}
		status.Stop()
		holdTimer.Stop()
		collector.Count("dropped", len(clients)-countAlive(clients))
	}

	collector.Report()
}

// connectAll dials n players spread over ramp and returns the ones that
// completed the handshake.
func connectAll(ctx context.Context, collector *stats.Collector, url, prefix string, n int, ramp time.Duration, concurrency int) []*client.Client {
	fmt.Println("\n--- Ramp-up ---")
	interval := ramp / time.Duration(max(n, 1))
	if interval <= 0 {
		interval = time.Millisecond
	}

	var (
		mu      sync.Mutex
		clients = make([]*client.Client, 0, n)
		wg      sync.WaitGroup
		sem     = make(chan struct{}, max(concurrency, 1))
	)

	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Printf("  [ramp] connections: %d/%d  errors: %d\n", collector.Connections(), n, collector.Errors())
			case <-progressDone:
				return
			}
		}
	}()

	start := time.Now()
	ticker := time.NewTicker(interval)
launch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted during ramp-up.")
			break launch
		case <-ticker.C:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			c, err := client.New(dialCtx, url, name)
			if err != nil {
				collector.AddError()
				return
			}
			if err := c.WaitForSession(dialCtx); err != nil {
				collector.AddError()
				_ = c.Close()
				return
			}
			collector.AddConnect(c.Metrics().ConnectLatency)
			mu.Lock()
			clients = append(clients, c)
			mu.Unlock()
		}(playerName(prefix, i))
	}
	ticker.Stop()
	wg.Wait()
	close(progressDone)

	fmt.Printf("Ramp-up complete: %d/%d connections in %s (%d errors)\n",
		len(clients), n, time.Since(start).Round(time.Millisecond), collector.Errors())
	return clients
}

func countAlive(clients []*client.Client) int {
	alive := 0
	for _, c := range clients {
		if c.Alive() {
			alive++
		}
	}
	return alive
}
