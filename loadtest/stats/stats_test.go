package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	var ds []time.Duration
	for i := 100; i >= 1; i-- {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	s := Summarize(ds)
	assert.Equal(t, 100, s.N)
	assert.Equal(t, 51*time.Millisecond, s.P50)
	assert.Equal(t, 95*time.Millisecond, s.P95)
	assert.Equal(t, 99*time.Millisecond, s.P99)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50500*time.Microsecond, s.Avg)

	assert.Equal(t, Summary{}, Summarize(nil))
	one := Summarize([]time.Duration{time.Second})
	assert.Equal(t, time.Second, one.P99)
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.AddConnect(2 * time.Millisecond)
	c.AddConnect(4 * time.Millisecond)
	c.AddError()
	c.Count("sent", 3)
	c.Count("sent", 2)
	c.Observe("delivery", time.Millisecond)

	assert.Equal(t, 2, c.Connections())
	assert.Equal(t, 1, c.Errors())
	assert.Equal(t, 5, c.Counter("sent"))
	assert.Equal(t, 2, c.Summary("connect").N)
	assert.Equal(t, time.Millisecond, c.Summary("delivery").Max)
}

const exposition = `# HELP chatty_connections_total Current number of connected players
# TYPE chatty_connections_total gauge
chatty_connections_total 42
chatty_messages_total{outcome="delivered"} 10
chatty_messages_total{outcome="cooldown"} 3
chatty_moderation_blocks_total{filter="caps",mode="strip"} 2
chatty_relay_frames_total{direction="out",result="ok"} 7
chatty_message_latency_seconds_sum 0.5
chatty_message_latency_seconds_count 13
chatty_message_recipients_sum 120
chatty_message_recipients_count 10
go_goroutines 12
`

func TestParse(t *testing.T) {
	snap, err := parse(strings.NewReader(exposition))
	require.NoError(t, err)
	assert.Equal(t, 42.0, snap.connections)
	assert.Equal(t, 13.0, snap.messages)
	assert.Equal(t, 10.0, snap.delivered)
	assert.Equal(t, 2.0, snap.moderationBlocks)
	assert.Equal(t, 7.0, snap.relayFrames)
	assert.Equal(t, 0.5, snap.latencySum)
	assert.Equal(t, 13.0, snap.latencyCount)
	assert.Equal(t, 120.0, snap.recipientsSum)
}

func TestParseLine(t *testing.T) {
	name, labels, v, ok := parseLine(`chatty_messages_total{outcome="x y"} 4 1700000000`)
	require.True(t, ok)
	assert.Equal(t, "chatty_messages_total", name)
	assert.Equal(t, `outcome="x y"`, labels)
	assert.Equal(t, 4.0, v)

	_, _, _, ok = parseLine("broken")
	assert.False(t, ok)
	_, _, _, ok = parseLine("metric notanumber")
	assert.False(t, ok)
}
