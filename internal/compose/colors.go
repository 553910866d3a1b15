// Package compose renders a moderated message into the legacy colour-coded
// line and the interactive part model delivered to players.
package compose

import (
	"strings"

	"github.com/chatty/chat-relay/internal/permission"
)

// Legacy formatting code characters. Config and players type '&'; the
// rendered line carries '§'.
const (
	AltCodeChar = '&'
	CodeChar    = '§'
)

const allCodes = "0123456789abcdefklmnorABCDEFKLMNOR"

func isCode(c byte) bool { return strings.IndexByte(allCodes, c) >= 0 }

// translate rewrites from+code pairs into to+code for every code accepted
// by allow.
func translate(s string, from, to rune, allow func(byte) bool) string {
	if !strings.ContainsRune(s, from) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == from && i+1 < len(rs) && rs[i+1] < 0x80 && isCode(byte(rs[i+1])) && allow(byte(rs[i+1])) {
			b.WriteRune(to)
			b.WriteRune(rs[i+1])
			i++
			continue
		}
		b.WriteRune(rs[i])
	}
	return b.String()
}

func everyCode(byte) bool { return true }

// Colorize turns every &-code into a §-code.
func Colorize(s string) string { return translate(s, AltCodeChar, CodeChar, everyCode) }

// Uncolorize turns every §-code back into an &-code.
func Uncolorize(s string) string { return translate(s, CodeChar, AltCodeChar, everyCode) }

// StripColors removes §-codes.
func StripColors(s string) string {
	if !strings.ContainsRune(s, CodeChar) {
		return s
	}
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == CodeChar && i+1 < len(rs) && rs[i+1] < 0x80 && isCode(byte(rs[i+1])) {
			i++
			continue
		}
		b.WriteRune(rs[i])
	}
	return b.String()
}

// styleGroups maps each style permission to the codes it unlocks.
var styleGroups = []struct {
	name  string
	codes string
}{
	{"colors", "0123456789abcdefABCDEF"},
	{"magic", "kK"},
	{"bold", "lL"},
	{"strikethrough", "mM"},
	{"underline", "nN"},
	{"italic", "oO"},
	{"reset", "rR"},
}

// Stylish colorizes only the codes the player may use in the channel.
// Style nodes are chatty.style.<group> or chatty.style.<group>.<channel>.
func Stylish(perms permission.Oracle, player, channel, text string) string {
	var allowed strings.Builder
	for _, g := range styleGroups {
		node := "chatty.style." + g.name
		if permission.Any(perms, player, node, node+"."+channel) {
			allowed.WriteString(g.codes)
		}
	}
	codes := allowed.String()
	if codes == "" {
		return text
	}
	return translate(text, AltCodeChar, CodeChar, func(c byte) bool {
		return strings.IndexByte(codes, c) >= 0
	})
}
