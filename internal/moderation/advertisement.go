package moderation

import (
	"regexp"
	"strings"
)

// DefaultAdsReplacement is substituted for advertised addresses.
const DefaultAdsReplacement = "<ads>"

// Default detection patterns. The web pattern requires a scheme, a www.
// prefix, or a path after a bare domain so version strings like "v2.0" and
// decimals like "3.14" pass.
const (
	DefaultIPPattern  = `\b(?:\d{1,3}[.,]\s?){3}\d{1,3}(?::\d{1,5})?\b`
	DefaultWebPattern = `(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf|me|gg)/\S*)`
)

// Advertisement replaces IP addresses and links that are not whitelisted.
type Advertisement struct {
	patterns    []*regexp.Regexp
	whitelist   []string
	replacement string
}

// NewAdvertisement compiles the detection patterns. Empty pattern strings
// fall back to the defaults.
func NewAdvertisement(ipPattern, webPattern string, whitelist []string, replacement string) (*Advertisement, error) {
	if ipPattern == "" {
		ipPattern = DefaultIPPattern
	}
	if webPattern == "" {
		webPattern = DefaultWebPattern
	}
	if replacement == "" {
		replacement = DefaultAdsReplacement
	}
	a := &Advertisement{replacement: replacement}
	for _, p := range []string{ipPattern, webPattern} {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		a.patterns = append(a.patterns, re)
	}
	for _, w := range whitelist {
		if w = strings.TrimSpace(w); w != "" {
			a.whitelist = append(a.whitelist, strings.ToLower(w))
		}
	}
	return a, nil
}

func (a *Advertisement) Kind() string { return KindAdvertisement }

func (a *Advertisement) whitelisted(match string) bool {
	lower := strings.ToLower(match)
	for _, w := range a.whitelist {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (a *Advertisement) Evaluate(text string) Verdict {
	edited := text
	var terms termSet
	for _, re := range a.patterns {
		edited = re.ReplaceAllStringFunc(edited, func(m string) string {
			if a.whitelisted(m) {
				return m
			}
			terms.add(m)
			return a.replacement
		})
	}
	return verdict(text, edited, terms.terms)
}
