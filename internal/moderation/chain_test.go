package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatty/chat-relay/internal/permission"
)

func newChain(t *testing.T, swearMode, capsMode, adsMode Mode) *Chain {
	t.Helper()
	set, err := NewWordFilterSet([]string{"foo"}, nil)
	require.NoError(t, err)
	ads, err := NewAdvertisement("", "", nil, "")
	require.NoError(t, err)
	return NewChain(
		Stage{Filter: NewProfanity(set, ""), Mode: swearMode},
		Stage{Filter: NewCaps(50, 0), Mode: capsMode},
		Stage{Filter: ads, Mode: adsMode},
	)
}

func TestChainAppliesFiltersInOrder(t *testing.T) {
	c := newChain(t, StripTerms, StripTerms, StripTerms)

	res := c.Evaluate(permission.Static{}, "steve", "FOO VISIT WWW.SPAM.NET")
	assert.Equal(t, "<swear> visit <ads>", res.Text)
	assert.Equal(t, []string{"[SWEAR]", "[CAPS]", "[ADS]"}, res.Tags())
	assert.Equal(t, []string{"FOO"}, res.SwearTerms)
	assert.False(t, res.Restrict)
	assert.False(t, res.Cancel)
}

func TestChainBypass(t *testing.T) {
	c := newChain(t, StripTerms, StripTerms, StripTerms)
	perms := permission.Static{"steve": {"chatty.moderation.swear"}}

	res := c.Evaluate(perms, "steve", "this foo bar")
	assert.Equal(t, "this foo bar", res.Text)
	assert.False(t, res.Blocked())
}

func TestChainRestrictAndCancel(t *testing.T) {
	c := newChain(t, RestrictToSender, CancelMessage, StripTerms)

	res := c.Evaluate(permission.Static{}, "steve", "a foo b")
	assert.True(t, res.Restrict)
	assert.False(t, res.Cancel)
	assert.Equal(t, "a <swear> b", res.Text)

	res = c.Evaluate(permission.Static{}, "steve", "SHOUTING LOUDLY www.spam.net")
	assert.True(t, res.Cancel)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "caps-found", res.Blocks[0].NoticeKey())
}

func TestChainCleanMessage(t *testing.T) {
	c := newChain(t, CancelMessage, CancelMessage, CancelMessage)
	res := c.Evaluate(permission.Static{}, "steve", "hello world")
	assert.False(t, res.Blocked())
	assert.Equal(t, "hello world", res.Text)
	assert.Empty(t, res.Tags())
}
