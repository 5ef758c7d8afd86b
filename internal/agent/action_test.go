package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryParseAction_NoFragment(t *testing.T) {
	for _, reply := range []string{
		"Sure, it's sunny today.",
		"  padded reply with trailing space ",
		"A set looks like {1, 2, 3} in math.",
		`The config is {"name": "x"}, no action there.`,
		"Unbalanced { brace",
	} {
		act, spoken, err := TryParseAction(reply)
		require.NoError(t, err)
		assert.Nil(t, act, reply)
		assert.Equal(t, reply, spoken)
	}
}

func TestTryParseAction_SpeakFragment(t *testing.T) {
	act, spoken, err := TryParseAction(`Reminder set. {"action":"speak","text":"ok"}`)
	require.NoError(t, err)
	assert.Equal(t, Speak{Text: "ok"}, act)
	assert.Equal(t, "Reminder set.", spoken)
}

func TestTryParseAction(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		act    Action
		spoken string
	}{
		{
			name:   "middle of reply",
			reply:  `Opening it now {"action": "open_app", "app": "WhatsApp"} for you.`,
			act:    OpenApp{App: "WhatsApp"},
			spoken: "Opening it now for you.",
		},
		{
			name:   "fenced",
			reply:  "Clicking.\n```json\n{\"action\":\"click\",\"target\":\"Send\"}\n```",
			act:    Click{Target: "Send"},
			spoken: "Clicking.",
		},
		{
			name:   "braces inside strings",
			reply:  `Typed. {"action":"type","text":"smile :} {wink","id":"entry"}`,
			act:    Type{Text: "smile :} {wink", TargetID: "entry"},
			spoken: "Typed.",
		},
		{
			name:   "second fragment ignored",
			reply:  `Done. {"action":"scroll","direction":"up"} and {"action":"click","target":"x"} trailing`,
			act:    Scroll{Direction: "up"},
			spoken: "Done. and",
		},
		{
			name:   "alias and camel case",
			reply:  `{"action":"webSearch","query":"weather"}`,
			act:    WebSearch{Query: "weather"},
			spoken: "",
		},
		{
			name:   "flashlight bool",
			reply:  `Light on. {"action":"flashlight","state":true}`,
			act:    Flashlight{On: true},
			spoken: "Light on.",
		},
		{
			name:   "flashlight string",
			reply:  `{"action":"torch","state":"off"} Off it goes.`,
			act:    Flashlight{On: false},
			spoken: "Off it goes.",
		},
		{
			name:   "sms",
			reply:  `{"action":"send_sms","to":"+1555","text":"late"}`,
			act:    SendSMS{To: "+1555", Text: "late"},
			spoken: "",
		},
		{
			name:   "read screen",
			reply:  `Here is what I see: {"action":"read_screen"}`,
			act:    ReadScreen{},
			spoken: "Here is what I see:",
		},
		{
			name:   "nested object",
			reply:  `Ok {"meta":{"action":"navigate","target":"home"}}`,
			act:    Navigate{Target: "home"},
			spoken: `Ok {"meta": }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, spoken, err := TryParseAction(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.act, act)
			assert.Equal(t, tt.spoken, spoken)
		})
	}
}

func TestTryParseAction_Unsupported(t *testing.T) {
	for _, reply := range []string{
		`Sure. {"action":"teleport","to":"mars"}`,
		`Sure. {"action":"click"}`,
		`Sure. {"action":"flashlight","state":"maybe"}`,
	} {
		act, spoken, err := TryParseAction(reply)
		assert.ErrorIs(t, err, ErrUnsupportedAction, reply)
		assert.Nil(t, act)
		assert.Equal(t, "Sure.", spoken)
	}
}
