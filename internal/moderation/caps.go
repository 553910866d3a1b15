package moderation

import (
	"strings"
	"unicode"
)

// Caps lower-cases messages that are mostly upper-case letters.
type Caps struct {
	// Percent of letters that must be upper-case, 1..100.
	Percent int
	// Length is the minimum number of letters before the check applies.
	Length int
}

// NewCaps applies the defaults of 80% over at least 6 letters.
func NewCaps(percent, length int) *Caps {
	if percent <= 0 || percent > 100 {
		percent = 80
	}
	if length <= 0 {
		length = 6
	}
	return &Caps{Percent: percent, Length: length}
}

func (c *Caps) Kind() string { return KindCaps }

func (c *Caps) Evaluate(text string) Verdict {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < c.Length || upper*100 < c.Percent*letters {
		return pass(text)
	}

	var terms termSet
	for _, w := range strings.Fields(text) {
		if strings.IndexFunc(w, unicode.IsUpper) >= 0 {
			terms.add(w)
		}
	}
	return verdict(text, strings.ToLower(text), terms.terms)
}
