package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatty/chat-relay/internal/permission"
)

var everything = permission.Static{"steve": {"*"}}

func TestResolveSymbolAndFallback(t *testing.T) {
	reg, err := NewRegistry([]Channel{
		{Name: "A", Symbol: "!", Enabled: true},
		{Name: "B", Enabled: true},
	}, LastMatch)
	require.NoError(t, err)

	tests := []struct {
		raw      string
		wantName string
		wantText string
	}{
		{"!hi", "A", "hi"},
		{"hi", "B", "hi"},
		{"!", "A", ""},
		{"hi!", "B", "hi!"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ch, text, ok := reg.Resolve(everything, "steve", tt.raw)
			require.True(t, ok)
			if ch.Name != tt.wantName || text != tt.wantText {
				t.Errorf("Resolve(%q) = (%s, %q), want (%s, %q)", tt.raw, ch.Name, text, tt.wantName, tt.wantText)
			}
		})
	}
}

func TestResolveSkipsGatedChannelWithoutPermission(t *testing.T) {
	reg, err := NewRegistry([]Channel{
		{Name: "A", Symbol: "!", Enabled: true, Permission: true},
		{Name: "B", Enabled: true},
	}, LastMatch)
	require.NoError(t, err)

	ch, text, ok := reg.Resolve(permission.Static{}, "alex", "!hi")
	require.True(t, ok)
	assert.Equal(t, "B", ch.Name)
	assert.Equal(t, "!hi", text)

	ch, _, ok = reg.Resolve(permission.Static{"alex": {"chatty.chat.A.write"}}, "alex", "!hi")
	require.True(t, ok)
	assert.Equal(t, "A", ch.Name)
}

func TestResolveNoEligibleChannel(t *testing.T) {
	reg, err := NewRegistry([]Channel{
		{Name: "A", Symbol: "!", Enabled: true},
		{Name: "off", Enabled: false},
	}, LastMatch)
	require.NoError(t, err)

	_, _, ok := reg.Resolve(everything, "steve", "hello")
	assert.False(t, ok)
}

func TestResolveTieBreakPolicies(t *testing.T) {
	channels := []Channel{
		{Name: "first", Symbol: "!", Enabled: true},
		{Name: "fallback1", Enabled: true},
		{Name: "second", Symbol: "!", Enabled: true},
		{Name: "fallback2", Enabled: true},
	}

	last, err := NewRegistry(channels, LastMatch)
	require.NoError(t, err)
	ch, _, _ := last.Resolve(everything, "steve", "!x")
	assert.Equal(t, "second", ch.Name)
	ch, _, _ = last.Resolve(everything, "steve", "x")
	assert.Equal(t, "fallback2", ch.Name)

	first, err := NewRegistry(channels, FirstSymbol)
	require.NoError(t, err)
	ch, _, _ = first.Resolve(everything, "steve", "!x")
	assert.Equal(t, "first", ch.Name)
}

func TestReloadRejectsDuplicatesAndKeepsPrevious(t *testing.T) {
	reg, err := NewRegistry([]Channel{{Name: "global", Enabled: true}}, LastMatch)
	require.NoError(t, err)

	err = reg.Reload([]Channel{{Name: "a"}, {Name: "A"}}, LastMatch)
	require.Error(t, err)

	_, ok := reg.Lookup("global")
	assert.True(t, ok)
	assert.Len(t, reg.Channels(), 1)
}

func TestLookupIsExact(t *testing.T) {
	reg, err := NewRegistry([]Channel{{Name: "Global", Enabled: true}}, LastMatch)
	require.NoError(t, err)

	ch, ok := reg.Lookup("Global")
	require.True(t, ok)
	assert.Equal(t, "Global", ch.Name)
	for _, name := range []string{"global", "GLOBAL", "Global "} {
		_, ok := reg.Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestReloadRejectsProximityWithoutDistance(t *testing.T) {
	_, err := NewRegistry([]Channel{{Name: "near", Scope: Scope{Kind: Proximity}}}, LastMatch)
	assert.Error(t, err)
}

func TestParseScopeAndPolicy(t *testing.T) {
	k, err := ParseScope("Network")
	require.NoError(t, err)
	assert.Equal(t, Network, k)
	_, err = ParseScope("galaxy")
	assert.Error(t, err)

	p, err := ParsePolicy("first-symbol")
	require.NoError(t, err)
	assert.Equal(t, FirstSymbol, p)
	_, err = ParsePolicy("random")
	assert.Error(t, err)
}
