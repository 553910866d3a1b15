package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfanity(t *testing.T, deny, allow []string) *Profanity {
	t.Helper()
	set, err := NewWordFilterSet(deny, allow)
	require.NoError(t, err)
	return NewProfanity(set, "")
}

func TestProfanity(t *testing.T) {
	p := newProfanity(t, []string{"foo", "ba+d"}, []string{"foobar"})

	tests := []struct {
		name    string
		input   string
		edited  string
		terms   []string
		blocked bool
	}{
		{"plain word", "this foo bar", "this <swear> bar", []string{"foo"}, true},
		{"case insensitive", "this FOO bar", "this <swear> bar", []string{"FOO"}, true},
		{"enclosing word", "so foolish", "so <swear>", []string{"foolish"}, true},
		{"allowed word", "foobar is fine", "foobar is fine", nil, false},
		{"regex term", "baaad stuff", "<swear> stuff", []string{"baaad"}, true},
		{"repeated word", "foo and foo", "<swear> and <swear>", []string{"foo"}, true},
		{"two words", "foo then bad", "<swear> then <swear>", []string{"foo", "bad"}, true},
		{"clean", "hello there", "hello there", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.Evaluate(tt.input)
			if v.Blocked != tt.blocked {
				t.Errorf("Evaluate(%q).Blocked = %v, want %v", tt.input, v.Blocked, tt.blocked)
			}
			assert.Equal(t, tt.edited, v.Edited)
			assert.Equal(t, tt.terms, v.Terms)
			assert.Equal(t, v.Blocked, v.Edited != tt.input)
		})
	}
}

func TestProfanityNonASCIIOffsets(t *testing.T) {
	p := newProfanity(t, []string{"foo"}, nil)
	// İ lower-cases to a shorter byte sequence, shifting offsets.
	v := p.Evaluate("İİ foo")
	assert.Equal(t, "İİ <swear>", v.Edited)
	assert.Equal(t, []string{"foo"}, v.Terms)
}

func TestEmptySetFailsOpen(t *testing.T) {
	p := NewProfanity(nil, "")
	v := p.Evaluate("anything goes")
	assert.False(t, v.Blocked)
	assert.Empty(t, v.Terms)
}

func TestLoadWordFilterSetMissingFile(t *testing.T) {
	set, err := LoadWordFilterSet(filepath.Join(t.TempDir(), "nope.txt"), "")
	assert.Error(t, err)
	require.NotNil(t, set)
	assert.Zero(t, set.Len())

	v := NewProfanity(set, "").Evaluate("foo")
	assert.False(t, v.Blocked)
}

func TestLoadWordFilterSetSkipsInvalidPatterns(t *testing.T) {
	dir := t.TempDir()
	deny := filepath.Join(dir, "swears.txt")
	allow := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(deny, []byte("foo\n\n(broken\nbar\n"), 0o644))
	require.NoError(t, os.WriteFile(allow, []byte("barn\n"), 0o644))

	set, err := LoadWordFilterSet(deny, allow)
	assert.Error(t, err)
	assert.Equal(t, 2, set.Len())

	p := NewProfanity(set, "***")
	assert.Equal(t, "*** barn", p.Evaluate("foo barn").Edited)
}

func TestSetWordsSwap(t *testing.T) {
	p := newProfanity(t, []string{"foo"}, nil)
	assert.True(t, p.Evaluate("foo").Blocked)

	next, err := NewWordFilterSet([]string{"bar"}, nil)
	require.NoError(t, err)
	p.SetWords(next)
	assert.False(t, p.Evaluate("foo").Blocked)
	assert.True(t, p.Evaluate("bar").Blocked)
}
