package listen

import "time"

// Timing holds the adaptive delay tiers.
type Timing struct {
	ConversationWindow time.Duration
	Conversation       time.Duration
	Base               time.Duration
	FewErrors          time.Duration
	ManyErrors         time.Duration
	Max                time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ConversationWindow: 30 * time.Second,
		Conversation:       100 * time.Millisecond,
		Base:               200 * time.Millisecond,
		FewErrors:          500 * time.Millisecond,
		ManyErrors:         1000 * time.Millisecond,
		Max:                2000 * time.Millisecond,
	}
}

// Attempt is the recognition state carried from one listen cycle to the next.
type Attempt struct {
	ConsecutiveErrors int
	LastSuccess       time.Time
}

func (a Attempt) InConversationWindow(now time.Time, window time.Duration) bool {
	if a.LastSuccess.IsZero() {
		return false
	}
	return now.Sub(a.LastSuccess) <= window
}

// NextDelay returns the pause before the next attempt.
func NextDelay(a Attempt, now time.Time, t Timing) time.Duration {
	if a.ConsecutiveErrors == 0 && a.InConversationWindow(now, t.ConversationWindow) {
		return t.Conversation
	}

	switch {
	case a.ConsecutiveErrors <= 0:
		return t.Base
	case a.ConsecutiveErrors <= 2:
		return t.FewErrors
	case a.ConsecutiveErrors <= 4:
		return t.ManyErrors
	default:
		return t.Max
	}
}

// Succeeded records a usable transcript.
func (a Attempt) Succeeded(now time.Time) Attempt {
	return Attempt{LastSuccess: now}
}

// Failed records a terminal error code.
func (a Attempt) Failed(code ErrorCode) Attempt {
	if !code.Counts() {
		a.ConsecutiveErrors = 0
		return a
	}
	a.ConsecutiveErrors++
	return a
}

// Sensitivity selects how long the recognizer waits in silence before it
// considers an utterance complete.
type Sensitivity string

const (
	SensitivityPatient Sensitivity = "patient"
	SensitivityNormal  Sensitivity = "normal"
	SensitivityFast    Sensitivity = "fast"
)

func (s Sensitivity) SilenceWindow() time.Duration {
	switch s {
	case SensitivityPatient:
		return 2000 * time.Millisecond
	case SensitivityFast:
		return 700 * time.Millisecond
	default:
		return 1200 * time.Millisecond
	}
}

func ParseSensitivity(s string) (Sensitivity, bool) {
	switch Sensitivity(s) {
	case SensitivityPatient, SensitivityNormal, SensitivityFast:
		return Sensitivity(s), true
	}
	return "", false
}
