package compose

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Click and hover actions understood by clients.
const (
	ActionRunCommand     = "run_command"
	ActionSuggestCommand = "suggest_command"
	ActionOpenURL        = "open_url"
	ActionShowText       = "show_text"
)

// Event is a click or hover action attached to a part.
type Event struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// Part is a run of text sharing one style and one set of events.
type Part struct {
	Text          string `json:"text"`
	Color         string `json:"color,omitempty"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underlined    bool   `json:"underlined,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Obfuscated    bool   `json:"obfuscated,omitempty"`
	ClickEvent    *Event `json:"clickEvent,omitempty"`
	HoverEvent    *Event `json:"hoverEvent,omitempty"`
}

func (p Part) styled() bool {
	return p.Color != "" || p.Bold || p.Italic || p.Underlined || p.Strikethrough || p.Obfuscated
}

func (p *Part) inheritStyle(from Part) {
	p.Color, p.Bold, p.Italic = from.Color, from.Bold, from.Italic
	p.Underlined, p.Strikethrough, p.Obfuscated = from.Underlined, from.Strikethrough, from.Obfuscated
}

// Actions describes the events attached when a token is rebound.
type Actions struct {
	Tooltip []string
	Command string
	Suggest string
	Link    string
}

// Apply sets the click and hover events of p. A command wins over a
// suggestion, which wins over a link.
func (a Actions) Apply(p *Part) {
	switch {
	case a.Command != "":
		p.ClickEvent = &Event{Action: ActionRunCommand, Value: a.Command}
	case a.Suggest != "":
		p.ClickEvent = &Event{Action: ActionSuggestCommand, Value: a.Suggest}
	case a.Link != "":
		p.ClickEvent = &Event{Action: ActionOpenURL, Value: a.Link}
	}
	if len(a.Tooltip) > 0 {
		p.HoverEvent = &Event{Action: ActionShowText, Value: strings.Join(a.Tooltip, "\n")}
	}
}

// Message is an interactive chat line.
type Message struct {
	Parts []Part
}

var colorNames = map[byte]string{
	'0': "black", '1': "dark_blue", '2': "dark_green", '3': "dark_aqua",
	'4': "dark_red", '5': "dark_purple", '6': "gold", '7': "gray",
	'8': "dark_gray", '9': "blue", 'a': "green", 'b': "aqua",
	'c': "red", 'd': "light_purple", 'e': "yellow", 'f': "white",
}

var colorCodes = func() map[string]byte {
	m := make(map[string]byte, len(colorNames))
	for c, n := range colorNames {
		m[n] = c
	}
	return m
}()

// ParseLegacy splits s into parts at every code introduced by codeChar.
// A colour code resets the active styles.
func ParseLegacy(s string, codeChar rune) Message {
	var (
		msg Message
		cur Part
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		cur.Text = buf.String()
		msg.Parts = append(msg.Parts, cur)
		buf.Reset()
	}

	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] != codeChar || i+1 >= len(rs) || rs[i+1] >= 0x80 || !isCode(byte(rs[i+1])) {
			buf.WriteRune(rs[i])
			continue
		}
		flush()
		code := byte(strings.ToLower(string(rs[i+1]))[0])
		i++
		switch code {
		case 'k':
			cur.Obfuscated = true
		case 'l':
			cur.Bold = true
		case 'm':
			cur.Strikethrough = true
		case 'n':
			cur.Underlined = true
		case 'o':
			cur.Italic = true
		case 'r':
			cur = Part{}
		default:
			cur = Part{Color: colorNames[code]}
		}
	}
	flush()
	return msg
}

// Replace rebinds every occurrence of token to the parts of repl. A
// replacement part without its own style inherits the style of the part
// the token was found in.
func (m Message) Replace(token string, repl Message) Message {
	if token == "" {
		return m
	}
	out := Message{Parts: make([]Part, 0, len(m.Parts))}
	for _, p := range m.Parts {
		if !strings.Contains(p.Text, token) {
			out.Parts = append(out.Parts, p)
			continue
		}
		pieces := strings.Split(p.Text, token)
		for i, piece := range pieces {
			if piece != "" {
				np := p
				np.Text = piece
				out.Parts = append(out.Parts, np)
			}
			if i == len(pieces)-1 {
				break
			}
			for _, rp := range repl.Parts {
				if !rp.styled() {
					rp.inheritStyle(p)
				}
				out.Parts = append(out.Parts, rp)
			}
		}
	}
	return out
}

// WithActions returns a copy with a applied to every part.
func (m Message) WithActions(a Actions) Message {
	out := Message{Parts: make([]Part, len(m.Parts))}
	for i, p := range m.Parts {
		a.Apply(&p)
		out.Parts[i] = p
	}
	return out
}

// PlainText concatenates the part texts.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Legacy renders the message back into a §-coded line for clients that do
// not understand parts.
func (m Message) Legacy() string {
	var b strings.Builder
	for i, p := range m.Parts {
		if c, ok := colorCodes[p.Color]; ok {
			b.WriteRune(CodeChar)
			b.WriteByte(c)
		} else if i > 0 {
			b.WriteString("§r")
		}
		for _, s := range []struct {
			on   bool
			code byte
		}{{p.Obfuscated, 'k'}, {p.Bold, 'l'}, {p.Strikethrough, 'm'}, {p.Underlined, 'n'}, {p.Italic, 'o'}} {
			if s.on {
				b.WriteRune(CodeChar)
				b.WriteByte(s.code)
			}
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

type wireMessage struct {
	Text  string `json:"text"`
	Extra []Part `json:"extra,omitempty"`
}

// MarshalJSON encodes the message as a root component holding the parts.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{Extra: m.Parts})
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON. Text on the
// root component becomes the first part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("compose: decode message: %w", err)
	}
	m.Parts = m.Parts[:0]
	if w.Text != "" {
		m.Parts = append(m.Parts, Part{Text: w.Text})
	}
	m.Parts = append(m.Parts, w.Extra...)
	return nil
}
