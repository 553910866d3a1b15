package moderation

import (
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// DefaultSwearReplacement is substituted for blocked words.
const DefaultSwearReplacement = "<swear>"

// Profanity replaces denied words with a replacement token. Words matching
// an allow pattern in full are left alone.
type Profanity struct {
	replacement string
	words       atomic.Pointer[WordFilterSet]
}

// NewProfanity creates the filter over an initial word set. A nil set
// denies nothing.
func NewProfanity(set *WordFilterSet, replacement string) *Profanity {
	if replacement == "" {
		replacement = DefaultSwearReplacement
	}
	p := &Profanity{replacement: replacement}
	p.SetWords(set)
	return p
}

// SetWords swaps the active word set. In-flight evaluations keep using the
// set they started with.
func (p *Profanity) SetWords(set *WordFilterSet) {
	if set == nil {
		set = &WordFilterSet{}
	}
	p.words.Store(set)
}

// Replacement returns the token substituted for blocked words.
func (p *Profanity) Replacement() string { return p.replacement }

func (p *Profanity) Kind() string { return KindSwear }

func (p *Profanity) Evaluate(text string) Verdict {
	set := p.words.Load()
	if set.deny == nil || text == "" {
		return pass(text)
	}

	lower, index := lowerWithIndex(text)
	edited := text
	var terms termSet

	for _, m := range set.deny.FindAllStringIndex(lower, -1) {
		if strings.TrimSpace(lower[m[0]:m[1]]) == "" {
			continue
		}
		word := enclosingWord(text, index[m[0]], index[m[1]])
		if word == "" || set.allowed(word) {
			continue
		}
		terms.add(word)
		edited = strings.ReplaceAll(edited, word, p.replacement)
	}
	return verdict(text, edited, terms.terms)
}

// lowerWithIndex lower-cases s and maps every byte offset of the result,
// plus its end, back to the byte offset of the source rune in s.
func lowerWithIndex(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	index := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		b.WriteRune(lr)
		for n := utf8.RuneLen(lr); n > 0; n-- {
			index = append(index, i)
		}
	}
	index = append(index, len(s))
	return b.String(), index
}

// enclosingWord widens [start, end) to the surrounding space-delimited word.
func enclosingWord(text string, start, end int) string {
	ws := 0
	if start < len(text) {
		if i := strings.LastIndexByte(text[:start+1], ' '); i >= 0 {
			ws = i
		}
	}
	we := len(text)
	if i := strings.IndexByte(text[end:], ' '); i >= 0 {
		we = end + i
	}
	return strings.TrimSpace(text[ws:we])
}
