// Package metrics provides Prometheus instrumentation for chat nodes:
// connection counts, pipeline outcomes, moderation blocks, relay traffic and
// delivery fan-out.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of connected players.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatty_connections_total",
		Help: "Current number of connected players",
	})

	// MessagesTotal counts pipeline runs by outcome, e.g. "delivered",
	// "cooldown", "cancelled".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatty_messages_total",
		Help: "Chat messages processed, by pipeline outcome",
	}, []string{"outcome"})

	// ModerationBlocks counts blocks by filter kind and mode.
	ModerationBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatty_moderation_blocks_total",
		Help: "Messages blocked by a moderation filter",
	}, []string{"filter", "mode"})

	// RelayFrames counts cross-node frames by direction ("in", "out") and
	// result ("ok", "malformed", "ignored", "error").
	RelayFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatty_relay_frames_total",
		Help: "Cross-node relay frames",
	}, []string{"direction", "result"})

	// Recipients records how many players received each message.
	Recipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatty_message_recipients",
		Help:    "Primary recipients per delivered message",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	// MessageLatency records pipeline processing latency in seconds.
	MessageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatty_message_latency_seconds",
		Help:    "Pipeline processing latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		ModerationBlocks,
		RelayFrames,
		Recipients,
		MessageLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
