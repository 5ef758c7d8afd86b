package listen

import (
	"context"
	"time"
)

// ErrorCode is the terminal failure reported by a recognition session.
type ErrorCode int

const (
	ErrNoMatch ErrorCode = iota + 1
	ErrSpeechTimeout
	ErrAudio
	ErrNetwork
	ErrNetworkTimeout
	ErrPermission
	ErrBusy
	ErrClient
	ErrServer
	ErrAttemptTimeout
)

var errorNames = map[ErrorCode]string{
	ErrNoMatch:        "no_match",
	ErrSpeechTimeout:  "speech_timeout",
	ErrAudio:          "audio",
	ErrNetwork:        "network",
	ErrNetworkTimeout: "network_timeout",
	ErrPermission:     "permission",
	ErrBusy:           "busy",
	ErrClient:         "client",
	ErrServer:         "server",
	ErrAttemptTimeout: "attempt_timeout",
}

func (c ErrorCode) String() string {
	if n, ok := errorNames[c]; ok {
		return n
	}
	return "unknown"
}

// Counts reports whether the code increments the consecutive error counter.
// Hearing nothing is the normal outcome of an always-on microphone.
func (c ErrorCode) Counts() bool {
	return c != ErrNoMatch && c != ErrSpeechTimeout
}

type StartOptions struct {
	Language      string
	SilenceWindow time.Duration
}

// Callbacks receive session events. A session may call them from any
// goroutine and more than once; the loop only honors the first terminal one.
type Callbacks struct {
	OnPartial func(text string)
	OnFinal   func(text string)
	OnError   func(code ErrorCode)
}

// Session is a one-shot recognition session. It is never restarted.
type Session interface {
	Start(ctx context.Context, opts StartOptions, cb Callbacks) error
	Cancel()
	Close()
}

type Recognizer interface {
	NewSession() (Session, error)
}

// FocusArbiter hands out exclusive microphone focus around one attempt.
type FocusArbiter interface {
	Acquire(ctx context.Context) bool
	Release()
	HasFocus() bool
}
