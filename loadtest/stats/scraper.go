package stats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// snapshot holds the node metrics at one scrape. Labelled series are
// summed.
type snapshot struct {
	at               time.Time
	connections      float64
	messages         float64
	delivered        float64
	moderationBlocks float64
	relayFrames      float64
	latencySum       float64
	latencyCount     float64
	recipientsSum    float64
	recipientsCount  float64
}

// Scraper polls a node's /metrics endpoint during a run.
type Scraper struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu    sync.Mutex
	snaps []snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScraper(metricsURL string, interval time.Duration) *Scraper {
	return &Scraper{
		url:      metricsURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		done:     make(chan struct{}),
	}
}

// Start scrapes once right away and then every interval until Stop.
func (s *Scraper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.scrape()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.scrape()
				return
			case <-ticker.C:
				s.scrape()
			}
		}
	}()
}

// Stop ends scraping and waits for the final snapshot.
func (s *Scraper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scraper) scrape() {
	resp, err := s.client.Get(s.url)
	if err != nil {
		// The node may not be up yet.
		return
	}
	defer resp.Body.Close()
	snap, err := parse(resp.Body)
	if err != nil {
		return
	}
	snap.at = time.Now()
	s.mu.Lock()
	s.snaps = append(s.snaps, snap)
	s.mu.Unlock()
}

// parse reads the Prometheus text format, keeping the chatty series.
func parse(r io.Reader) (snapshot, error) {
	var snap snapshot
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		name, labels, value, ok := parseLine(line)
		if !ok {
			continue
		}
		switch name {
		case "chatty_connections_total":
			snap.connections = value
		case "chatty_messages_total":
			snap.messages += value
			if strings.Contains(labels, `outcome="delivered"`) {
				snap.delivered += value
			}
		case "chatty_moderation_blocks_total":
			snap.moderationBlocks += value
		case "chatty_relay_frames_total":
			snap.relayFrames += value
		case "chatty_message_latency_seconds_sum":
			snap.latencySum = value
		case "chatty_message_latency_seconds_count":
			snap.latencyCount = value
		case "chatty_message_recipients_sum":
			snap.recipientsSum = value
		case "chatty_message_recipients_count":
			snap.recipientsCount = value
		}
	}
	return snap, sc.Err()
}

// parseLine splits `name{labels} value` into its parts. labels is empty
// for unlabelled series.
func parseLine(line string) (name, labels string, value float64, ok bool) {
	rest := line
	if open := strings.IndexByte(line, '{'); open >= 0 {
		end := strings.LastIndexByte(line, '}')
		if end < open {
			return "", "", 0, false
		}
		name, labels, rest = line[:open], line[open+1:end], line[end+1:]
	} else {
		var found bool
		name, rest, found = strings.Cut(line, " ")
		if !found {
			return "", "", 0, false
		}
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", "", 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", "", 0, false
	}
	return name, labels, v, true
}

// Report prints first, last, delta and peak of each scraped series.
func (s *Scraper) Report() {
	s.mu.Lock()
	snaps := append([]snapshot(nil), s.snaps...)
	s.mu.Unlock()

	if len(snaps) == 0 {
		fmt.Println("\n--- Node metrics (no data collected) ---")
		return
	}
	first, last := snaps[0], snaps[len(snaps)-1]
	fmt.Println("\n--- Node metrics (Prometheus) ---")
	fmt.Printf("  %d snapshots over %s\n\n", len(snaps), last.at.Sub(first.at).Round(time.Second))

	rows := []struct {
		label string
		get   func(snapshot) float64
	}{
		{"Connections", func(s snapshot) float64 { return s.connections }},
		{"Messages", func(s snapshot) float64 { return s.messages }},
		{"Delivered", func(s snapshot) float64 { return s.delivered }},
		{"Mod blocks", func(s snapshot) float64 { return s.moderationBlocks }},
		{"Relay frames", func(s snapshot) float64 { return s.relayFrames }},
	}
	fmt.Printf("  %-14s %10s %10s %10s %10s\n", "Metric", "Initial", "Final", "Delta", "Peak")
	for _, r := range rows {
		peak := r.get(first)
		for _, sn := range snaps {
			peak = max(peak, r.get(sn))
		}
		fmt.Printf("  %-14s %10.0f %10.0f %10.0f %10.0f\n",
			r.label, r.get(first), r.get(last), r.get(last)-r.get(first), peak)
	}

	fmt.Println()
	printAverage("Pipeline", "s", first.latencySum, first.latencyCount, last.latencySum, last.latencyCount)
	printAverage("Fan-out", " players", first.recipientsSum, first.recipientsCount, last.recipientsSum, last.recipientsCount)
}

func printAverage(label, unit string, sum0, n0, sum1, n1 float64) {
	if n := n1 - n0; n > 0 {
		fmt.Printf("  %-14s avg: %.4f%s  (%.0f observations)\n", label, (sum1-sum0)/n, unit, n)
		return
	}
	fmt.Printf("  %-14s avg: n/a\n", label)
}
