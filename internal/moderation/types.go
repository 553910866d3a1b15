// Package moderation implements the chat moderation chain: profanity, caps
// and advertisement filters applied in a fixed order, each one consuming the
// text edited by the previous one.
package moderation

import (
	"fmt"
	"strings"
)

// Filter kinds. Each kind names its bypass node (chatty.moderation.<kind>)
// and its sender notice (<kind>-found).
const (
	KindSwear         = "swear"
	KindCaps          = "caps"
	KindAdvertisement = "advertisement"
)

// Mode decides what happens to a message once a filter blocks it.
type Mode int

const (
	// StripTerms only edits the text.
	StripTerms Mode = iota
	// RestrictToSender delivers the edited message to the sender alone.
	RestrictToSender
	// CancelMessage aborts the message entirely.
	CancelMessage
)

func (m Mode) String() string {
	switch m {
	case StripTerms:
		return "strip"
	case RestrictToSender:
		return "restrict"
	case CancelMessage:
		return "cancel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strip", "edit", "":
		return StripTerms, nil
	case "restrict", "block":
		return RestrictToSender, nil
	case "cancel":
		return CancelMessage, nil
	default:
		return 0, fmt.Errorf("moderation: unknown mode %q", s)
	}
}

// Verdict is the outcome of one filter. Blocked is true exactly when Edited
// differs from the input, and Terms is non-empty exactly when Blocked.
type Verdict struct {
	Edited  string
	Terms   []string
	Blocked bool
	Mode    Mode
}

func pass(text string) Verdict { return Verdict{Edited: text} }

func verdict(original, edited string, terms []string) Verdict {
	if edited == original || len(terms) == 0 {
		return pass(original)
	}
	return Verdict{Edited: edited, Terms: terms, Blocked: true}
}

// Filter is one moderation stage.
type Filter interface {
	Kind() string
	Evaluate(text string) Verdict
}

// termSet is an insertion-ordered set of strings.
type termSet struct {
	seen  map[string]struct{}
	terms []string
}

func (s *termSet) add(t string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[t]; ok {
		return
	}
	s.seen[t] = struct{}{}
	s.terms = append(s.terms, t)
}
