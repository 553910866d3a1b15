// Package stats aggregates load test measurements and prints the report.
package stats

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

// Summary describes one latency series.
type Summary struct {
	N                       int
	Avg, P50, P95, P99, Max time.Duration
}

// Summarize computes the summary of ds. ds is sorted in place.
func Summarize(ds []time.Duration) Summary {
	if len(ds) == 0 {
		return Summary{}
	}
	slices.Sort(ds)
	n := len(ds)
	rank := func(q float64) time.Duration {
		return ds[max(int(math.Ceil(float64(n)*q))-1, 0)]
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return Summary{
		N:   n,
		Avg: sum / time.Duration(n),
		P50: ds[n/2],
		P95: rank(0.95),
		P99: rank(0.99),
		Max: ds[n-1],
	}
}

func (s Summary) String() string {
	r := func(d time.Duration) time.Duration { return d.Round(time.Microsecond) }
	return fmt.Sprintf("avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)",
		r(s.Avg), r(s.P50), r(s.P95), r(s.P99), r(s.Max), s.N)
}

// Collector is safe for concurrent use by many clients.
type Collector struct {
	mu          sync.Mutex
	start       time.Time
	connections int
	errors      int
	counters    map[string]int
	series      map[string][]time.Duration
	order       []string
	scraper     *Scraper
}

func NewCollector() *Collector {
	return &Collector{
		start:    time.Now(),
		counters: make(map[string]int),
		series:   make(map[string][]time.Duration),
	}
}

// SetScraper adds the server-side metrics to the report.
func (c *Collector) SetScraper(s *Scraper) {
	c.mu.Lock()
	c.scraper = s
	c.mu.Unlock()
}

// AddConnect records one established connection.
func (c *Collector) AddConnect(d time.Duration) {
	c.Observe("connect", d)
	c.mu.Lock()
	c.connections++
	c.mu.Unlock()
}

func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Count adds n to a named counter such as "sent" or "received".
func (c *Collector) Count(name string, n int) {
	c.mu.Lock()
	c.counters[name] += n
	c.mu.Unlock()
}

// Observe appends a latency sample to the named series. Series are
// reported in the order they were first observed.
func (c *Collector) Observe(series string, d time.Duration) {
	c.mu.Lock()
	if _, ok := c.series[series]; !ok {
		c.order = append(c.order, series)
	}
	c.series[series] = append(c.series[series], d)
	c.mu.Unlock()
}

func (c *Collector) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connections
}

func (c *Collector) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Counter returns the value of a named counter.
func (c *Collector) Counter(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Summary returns the summary of a series.
func (c *Collector) Summary(series string) Summary {
	c.mu.Lock()
	ds := slices.Clone(c.series[series])
	c.mu.Unlock()
	return Summarize(ds)
}

// Report prints the results to stdout.
func (c *Collector) Report() {
	c.mu.Lock()
	elapsed := time.Since(c.start)
	conns, errs := c.connections, c.errors
	counters := make(map[string]int, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v
	}
	order := slices.Clone(c.order)
	scraper := c.scraper
	c.mu.Unlock()

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Printf("Connections:  %d\n", conns)
	fmt.Printf("Errors:       %d\n", errs)
	if conns > 0 {
		fmt.Printf("Error rate:   %.2f%%\n", float64(errs)/float64(conns)*100)
	}

	names := make([]string, 0, len(counters))
	for k := range counters {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		fmt.Printf("%-13s %d\n", k+":", counters[k])
	}

	for _, name := range order {
		fmt.Printf("\n--- %s latency ---\n  %s\n", name, c.Summary(name))
	}

	if scraper != nil {
		scraper.Report()
	}
	fmt.Println()
}
