package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaps(t *testing.T) {
	c := NewCaps(0, 0)

	tests := []struct {
		input   string
		blocked bool
	}{
		{"HELLO EVERYONE", true},
		{"HELLO", false},
		{"Hello Everyone", false},
		{"HELLO EVERYONe", true},
		{"WHAT is going on", false},
		{"1234567890!!", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := c.Evaluate(tt.input)
			if v.Blocked != tt.blocked {
				t.Errorf("Evaluate(%q).Blocked = %v, want %v", tt.input, v.Blocked, tt.blocked)
			}
			if v.Blocked {
				assert.NotEmpty(t, v.Terms)
				assert.NotEqual(t, tt.input, v.Edited)
			}
		})
	}
}

func TestAdvertisement(t *testing.T) {
	a, err := NewAdvertisement("", "", []string{"example.org"}, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  string
		edited string
	}{
		{"http url", "join http://evil.com now", "join <ads> now"},
		{"www url", "go to www.phishing.net", "go to <ads>"},
		{"bare domain path", "visit evil.com/free", "visit <ads>"},
		{"ip with port", "play at 127.0.0.1:25565 today", "play at <ads> today"},
		{"whitelisted", "docs at https://example.org/wiki", "docs at https://example.org/wiki"},
		{"version string", "updated to v2.0", "updated to v2.0"},
		{"decimal", "pi is 3.14", "pi is 3.14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := a.Evaluate(tt.input)
			assert.Equal(t, tt.edited, v.Edited)
			assert.Equal(t, tt.edited != tt.input, v.Blocked)
		})
	}
}

func TestAdvertisementInvalidPattern(t *testing.T) {
	_, err := NewAdvertisement("(", "", nil, "")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"strip": StripTerms, "restrict": RestrictToSender, "CANCEL": CancelMessage, "": StripTerms} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("explode")
	assert.Error(t, err)
}
