package agent

import (
	"strings"
	"time"
	"unicode"
)

// Quick is the outcome of a fast-path match: a reply to speak, an action to
// run, or a request to end the session.
type Quick struct {
	Shutdown bool
	Reply    string
	Action   Action
}

var shutdownPhrases = map[string]bool{
	"stop listening": true, "goodbye": true, "good bye": true, "bye": true,
	"shut down": true, "shutdown": true, "deactivate": true,
}

// Courtesy words allowed around a shutdown phrase. Anything else makes the
// utterance a request about something else.
var (
	shutdownLeads = []string{"please", "ok", "okay", "hey", "voxpilot", "now", "you can"}
	shutdownTails = []string{"please", "now", "thanks", "thank you", "voxpilot"}
)

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hey there": true, "hi there": true,
	"hello there": true, "good morning": true, "good afternoon": true, "good evening": true,
}

var timeQuestions = []string{
	"what time is it", "what's the time", "whats the time", "what is the time",
	"tell me the time", "current time",
}

var dateQuestions = []string{
	"what's the date", "whats the date", "what is the date", "what day is it",
	"what's today's date", "what is today's date", "today's date",
}

// FastPaths answers utterances that need neither the completion service nor
// screen context.
type FastPaths struct {
	// Apps are the spoken names "open <app>" launches directly.
	Apps     map[string]bool
	Greeting string
}

func NewFastPaths(apps []string, greeting string) *FastPaths {
	set := make(map[string]bool, len(apps))
	for _, a := range apps {
		set[strings.ToLower(a)] = true
	}
	if greeting == "" {
		greeting = "Hi! What can I do for you?"
	}
	return &FastPaths{Apps: set, Greeting: greeting}
}

func (f *FastPaths) Match(text string, now time.Time) (Quick, bool) {
	t := normalize(text)
	if t == "" {
		return Quick{}, false
	}

	if shutdownPhrases[trimCourtesy(t)] {
		return Quick{Shutdown: true}, true
	}

	for _, q := range timeQuestions {
		if strings.Contains(t, q) {
			return Quick{Reply: "It's " + now.Format("3:04 PM") + "."}, true
		}
	}
	for _, q := range dateQuestions {
		if strings.Contains(t, q) {
			return Quick{Reply: "Today is " + now.Format("Monday, January 2") + "."}, true
		}
	}

	if greetings[t] {
		return Quick{Reply: f.Greeting}, true
	}

	switch t {
	case "go back", "back":
		return Quick{Action: Navigate{Target: "back"}}, true
	case "go home", "home", "home screen":
		return Quick{Action: Navigate{Target: "home"}}, true
	case "scroll up", "scroll down":
		return Quick{Action: Scroll{Direction: strings.TrimPrefix(t, "scroll ")}}, true
	}

	for _, verb := range []string{"open ", "launch ", "start "} {
		app, ok := strings.CutPrefix(t, verb)
		if !ok {
			continue
		}
		app = strings.TrimPrefix(app, "the ")
		app = strings.TrimSuffix(app, " app")
		if f.Apps[app] {
			return Quick{Reply: "Opening " + app + ".", Action: OpenApp{App: app}}, true
		}
	}

	return Quick{}, false
}

// trimCourtesy strips leading and trailing courtesy words from a normalized
// utterance.
func trimCourtesy(t string) string {
	for trimmed := true; trimmed; {
		trimmed = false
		for _, w := range shutdownLeads {
			if rest, ok := strings.CutPrefix(t, w+" "); ok {
				t, trimmed = rest, true
			}
		}
		for _, w := range shutdownTails {
			if rest, ok := strings.CutSuffix(t, " "+w); ok {
				t, trimmed = rest, true
			}
		}
	}
	return t
}

// normalize lowercases text, drops surrounding punctuation and collapses
// whitespace. Apostrophes are kept.
func normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’':
			return '\''
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
