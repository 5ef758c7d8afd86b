package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxpilot/pkg/completion"
)

var ErrSessionTimeout = errors.New("recognition attempt timed out")

type Config struct {
	Language       string
	Sensitivity    Sensitivity
	AttemptTimeout time.Duration
	Timing         Timing
	// FocusPoll is how often a running attempt checks that it still holds
	// microphone focus.
	FocusPoll time.Duration

	// OnPartial receives interim transcripts, OnStart fires once the
	// session is running. Both are optional.
	OnPartial func(text string)
	OnStart   func()

	Now func() time.Time
}

func (c *Config) withDefaults() {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 12 * time.Second
	}
	if c.FocusPoll <= 0 {
		c.FocusPoll = 100 * time.Millisecond
	}
	if c.Timing == (Timing{}) {
		c.Timing = DefaultTiming()
	}
	if c.Sensitivity == "" {
		c.Sensitivity = SensitivityNormal
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type outcome struct {
	text string
	code ErrorCode
}

// Loop turns one-shot recognition sessions into a blocking Listen call.
type Loop struct {
	rec   Recognizer
	focus FocusArbiter
	cfg   Config

	mu    sync.Mutex
	state Attempt
}

func NewLoop(rec Recognizer, focus FocusArbiter, cfg Config) *Loop {
	cfg.withDefaults()
	return &Loop{
		rec:   rec,
		focus: focus,
		cfg:   cfg,
	}
}

func (l *Loop) State() Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// NextDelay is the pause the next Listen call will take before it starts.
func (l *Loop) NextDelay() time.Duration {
	return NextDelay(l.State(), l.cfg.Now(), l.cfg.Timing)
}

// Listen captures one utterance. It returns "" when nothing usable was heard
// within the attempt budget or ctx ended.
func (l *Loop) Listen(ctx context.Context) string {
	delay := l.NextDelay()

	t := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		t.Stop()
		return ""
	case <-t.C:
	}

	id := uuid.NewString()[:8]
	out, err := l.attempt(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		log.Warn("Recognition attempt failed", "attempt", id, "err", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if out.code != 0 {
		l.state = l.state.Failed(out.code)
		log.Debug("Recognition ended", "attempt", id, "code", out.code.String(), "errors", l.state.ConsecutiveErrors)
		return ""
	}

	text := strings.TrimSpace(out.text)
	if text == "" {
		l.state = l.state.Failed(ErrNoMatch)
		return ""
	}

	l.state = l.state.Succeeded(l.cfg.Now())
	log.Debug("Recognized", "attempt", id, "text", text)
	return text
}

func (l *Loop) attempt(ctx context.Context, id string) (outcome, error) {
	granted := false
	if l.focus != nil {
		granted = l.focus.Acquire(ctx)
		if !granted {
			log.Warn("Audio focus denied, listening anyway", "attempt", id)
		}
		defer l.focus.Release()
	}

	sess, err := l.rec.NewSession()
	if err != nil {
		return outcome{code: ErrClient}, fmt.Errorf("new session: %w", err)
	}
	defer sess.Close()

	done := completion.New[outcome]()
	cb := Callbacks{
		OnPartial: func(text string) {
			if l.cfg.OnPartial != nil && !done.Resolved() {
				l.cfg.OnPartial(text)
			}
		},
		OnFinal: func(text string) {
			done.Resolve(outcome{text: text})
		},
		OnError: func(code ErrorCode) {
			done.Resolve(outcome{code: code})
		},
	}

	actx, cancel := context.WithTimeout(ctx, l.cfg.AttemptTimeout)
	defer cancel()

	opts := StartOptions{
		Language:      l.cfg.Language,
		SilenceWindow: l.cfg.Sensitivity.SilenceWindow(),
	}
	if err := sess.Start(actx, opts, cb); err != nil {
		return outcome{code: ErrClient}, fmt.Errorf("start session: %w", err)
	}
	if l.cfg.OnStart != nil {
		l.cfg.OnStart()
	}

	// Focus is only watched when it was granted.
	var poll <-chan time.Time
	if granted {
		t := time.NewTicker(l.cfg.FocusPoll)
		defer t.Stop()
		poll = t.C
	}

	for {
		select {
		case <-done.Done():
			return done.Value(), nil
		case <-poll:
			if l.focus.HasFocus() {
				continue
			}
			sess.Cancel()
			if done.Resolve(outcome{code: ErrBusy}) {
				log.Warn("Audio focus lost, attempt canceled", "attempt", id)
			}
			return done.Value(), nil
		case <-actx.Done():
			sess.Cancel()
			if !done.Resolve(outcome{code: ErrAttemptTimeout}) {
				// The session finished in the same instant; keep its result.
				return done.Value(), nil
			}
			if ctx.Err() != nil {
				return done.Value(), ctx.Err()
			}
			return done.Value(), ErrSessionTimeout
		}
	}
}
