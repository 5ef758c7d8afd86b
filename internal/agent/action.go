package agent

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

var ErrUnsupportedAction = errors.New("unsupported action")

type ActionKind string

const (
	KindOpenApp     ActionKind = "open_app"
	KindReadScreen  ActionKind = "read_screen"
	KindClick       ActionKind = "click"
	KindType        ActionKind = "type"
	KindScroll      ActionKind = "scroll"
	KindNavigate    ActionKind = "navigate"
	KindWebSearch   ActionKind = "web_search"
	KindSpeak       ActionKind = "speak"
	KindSendMessage ActionKind = "send_message"
	KindVolume      ActionKind = "volume"
	KindFlashlight  ActionKind = "flashlight"
	KindSendSMS     ActionKind = "send_sms"
	KindCall        ActionKind = "call"
)

// Action is a directive extracted from a reply. The concrete types below
// are the only implementations.
type Action interface {
	Kind() ActionKind
}

type (
	OpenApp     struct{ App string }
	ReadScreen  struct{}
	Click       struct{ Target string }
	Type        struct{ Text, TargetID string }
	Scroll      struct{ Direction string }
	Navigate    struct{ Target string }
	WebSearch   struct{ Query string }
	Speak       struct{ Text string }
	SendMessage struct{ Text string }
	Volume      struct{ Direction string }
	Flashlight  struct{ On bool }
	SendSMS     struct{ To, Text string }
	Call        struct{ To string }
)

func (OpenApp) Kind() ActionKind     { return KindOpenApp }
func (ReadScreen) Kind() ActionKind  { return KindReadScreen }
func (Click) Kind() ActionKind       { return KindClick }
func (Type) Kind() ActionKind        { return KindType }
func (Scroll) Kind() ActionKind      { return KindScroll }
func (Navigate) Kind() ActionKind    { return KindNavigate }
func (WebSearch) Kind() ActionKind   { return KindWebSearch }
func (Speak) Kind() ActionKind       { return KindSpeak }
func (SendMessage) Kind() ActionKind { return KindSendMessage }
func (Volume) Kind() ActionKind      { return KindVolume }
func (Flashlight) Kind() ActionKind  { return KindFlashlight }
func (SendSMS) Kind() ActionKind     { return KindSendSMS }
func (Call) Kind() ActionKind        { return KindCall }

// kindAliases maps a kind with separators removed to its canonical name.
var kindAliases = map[string]ActionKind{
	"openapp":     KindOpenApp,
	"open":        KindOpenApp,
	"launch":      KindOpenApp,
	"readscreen":  KindReadScreen,
	"click":       KindClick,
	"tap":         KindClick,
	"type":        KindType,
	"typetext":    KindType,
	"scroll":      KindScroll,
	"navigate":    KindNavigate,
	"websearch":   KindWebSearch,
	"search":      KindWebSearch,
	"speak":       KindSpeak,
	"say":         KindSpeak,
	"sendmessage": KindSendMessage,
	"volume":      KindVolume,
	"flashlight":  KindFlashlight,
	"torch":       KindFlashlight,
	"sendsms":     KindSendSMS,
	"sms":         KindSendSMS,
	"call":        KindCall,
}

type payload struct {
	Action    string `json:"action"`
	App       string `json:"app"`
	Target    string `json:"target"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Query     string `json:"query"`
	State     any    `json:"state"`
	To        string `json:"to"`
}

// TryParseAction extracts the first embedded {"action": ...} object from a
// reply. Without one, act is nil and spoken is the reply unchanged.
// Otherwise the object is cut out of spoken along with anything after a
// second object. A fragment of an unknown kind is still removed; err then
// wraps ErrUnsupportedAction and act is nil.
func TryParseAction(reply string) (act Action, spoken string, err error) {
	start, end, ok := findFragment(reply)
	if !ok {
		return nil, reply, nil
	}

	before, after := reply[:start], reply[end:]
	if s, _, ok := findFragment(after); ok {
		after = after[:s]
	}
	before, after = stripFence(before, after)
	spoken = strings.TrimSpace(strings.TrimSpace(before) + " " + strings.TrimSpace(after))

	var p payload
	if err := json.Unmarshal([]byte(reply[start:end]), &p); err != nil {
		return nil, spoken, fmt.Errorf("%w: %v", ErrUnsupportedAction, err)
	}
	act, err = p.action()
	return act, spoken, err
}

func (p payload) action() (Action, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(p.Action))
	kind, ok := kindAliases[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, p.Action)
	}

	var a Action
	switch kind {
	case KindOpenApp:
		a = OpenApp{App: first(p.App, p.Target)}
	case KindReadScreen:
		return ReadScreen{}, nil
	case KindClick:
		a = Click{Target: first(p.Target, p.Text)}
	case KindType:
		return Type{Text: p.Text, TargetID: p.ID}, nil
	case KindScroll:
		d := first(p.Direction, "down")
		return Scroll{Direction: d}, nil
	case KindNavigate:
		a = Navigate{Target: first(p.Target, p.App)}
	case KindWebSearch:
		a = WebSearch{Query: first(p.Query, p.Text)}
	case KindSpeak:
		a = Speak{Text: p.Text}
	case KindSendMessage:
		a = SendMessage{Text: p.Text}
	case KindVolume:
		a = Volume{Direction: first(p.Direction, stateString(p.State))}
	case KindFlashlight:
		on, ok := parseSwitch(p.State)
		if !ok {
			return nil, fmt.Errorf("%w: flashlight state %v", ErrUnsupportedAction, p.State)
		}
		return Flashlight{On: on}, nil
	case KindSendSMS:
		if p.To == "" {
			return nil, fmt.Errorf("%w: send_sms without recipient", ErrUnsupportedAction)
		}
		return SendSMS{To: p.To, Text: p.Text}, nil
	case KindCall:
		a = Call{To: p.To}
	}

	if empty(a) {
		return nil, fmt.Errorf("%w: %s without argument", ErrUnsupportedAction, kind)
	}
	return a, nil
}

func empty(a Action) bool {
	switch v := a.(type) {
	case OpenApp:
		return v.App == ""
	case Click:
		return v.Target == ""
	case Navigate:
		return v.Target == ""
	case WebSearch:
		return v.Query == ""
	case Speak:
		return v.Text == ""
	case SendMessage:
		return v.Text == ""
	case Volume:
		return v.Direction == ""
	case Call:
		return v.To == ""
	}
	return false
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func stateString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parseSwitch(v any) (on, ok bool) {
	switch s := v.(type) {
	case bool:
		return s, true
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "true", "enable", "enabled":
			return true, true
		case "off", "false", "disable", "disabled":
			return false, true
		}
	}
	return false, false
}

// findFragment locates the first balanced JSON object whose top level
// carries an "action" key. Braces inside string literals are ignored.
func findFragment(s string) (start, end int, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		j, balanced := matchBrace(s, i)
		if balanced && hasActionKey(s[i:j]) {
			return i, j, true
		}
	}
	return 0, 0, false
}

// matchBrace returns the index just past the brace closing s[open].
func matchBrace(s string, open int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func hasActionKey(obj string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return false
	}
	raw, ok := m["action"]
	if !ok {
		return false
	}
	var kind string
	return json.Unmarshal(raw, &kind) == nil && kind != ""
}

// stripFence drops a markdown code fence wrapped around the fragment.
func stripFence(before, after string) (string, string) {
	b := strings.TrimRight(before, " \t\r\n")
	a := strings.TrimLeft(after, " \t\r\n")
	if !strings.HasPrefix(a, "```") {
		return before, after
	}
	for _, tag := range []string{"```json", "```JSON", "```"} {
		if strings.HasSuffix(b, tag) {
			return strings.TrimSuffix(b, tag), strings.TrimPrefix(a, "```")
		}
	}
	return before, after
}
