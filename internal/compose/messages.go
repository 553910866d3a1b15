package compose

import "strings"

// DefaultMessages are the user-facing texts used when config leaves a key
// out.
var DefaultMessages = Messages{
	"chat-not-found":      "&cThere is no chat you can write to.",
	"cooldown":            "&cWait {cooldown} seconds before sending to this chat again.",
	"not-enough-money":    "&cYou need {money} to send a message to this chat.",
	"no-recipients":       "&cNobody heard you.",
	"swear-found":         "&cPlease do not swear.",
	"caps-found":          "&cPlease turn off caps lock.",
	"advertisement-found": "&cAdvertising is not allowed.",
	"invalid-message":     "&cThat message cannot be sent.",
	"no-permission":       "&cYou do not have permission.",
	"unknown-command":     "&cUnknown command.",

	"prefix-command.usage":                "&cUsage: /{label} <player> <prefix|clear>",
	"prefix-command.player-not-found":     "&cPlayer not found.",
	"prefix-command.no-permission-others": "&cYou cannot change the prefix of other players.",
	"prefix-command.prefix-clear":         "&aPrefix of {player} cleared.",
	"prefix-command.prefix-set":           "&aPrefix of {player} set to &r{prefix}",

	"spy-command.enabled":  "&aSpy enabled.",
	"spy-command.disabled": "&cSpy disabled.",
}

// Messages maps message keys to templates with {placeholders}.
type Messages map[string]string

// WithDefaults returns a copy of m with missing keys filled from
// DefaultMessages.
func (m Messages) WithDefaults() Messages {
	out := make(Messages, len(DefaultMessages)+len(m))
	for k, v := range DefaultMessages {
		out[k] = v
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Render looks up key, substitutes {name} value pairs and colorizes the
// result. Unknown keys render as the key itself.
func (m Messages) Render(key string, pairs ...string) string {
	tpl, ok := m[key]
	if !ok {
		tpl = key
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		tpl = strings.ReplaceAll(tpl, "{"+pairs[i]+"}", pairs[i+1])
	}
	return Colorize(tpl)
}
