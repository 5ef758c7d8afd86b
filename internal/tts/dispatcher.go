package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"voxpilot/pkg/completion"
)

var ErrExhausted = errors.New("all speech backends failed")

// Backend turns text into audio and blocks until playback ends. It must stop
// playing and return when ctx ends.
type Backend interface {
	Name() string
	Speak(ctx context.Context, text string) error
}

type Config struct {
	// Timeout bounds one utterance across the whole chain.
	Timeout time.Duration
	// OnExhausted is told when no backend could speak the text.
	OnExhausted func(text string, err error)
}

// Dispatcher speaks through an ordered chain of backends, falling through to
// the next one on error. Only one utterance plays at a time.
type Dispatcher struct {
	backends []Backend
	cfg      Config

	play sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewDispatcher(cfg Config, backends ...Backend) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	return &Dispatcher{backends: backends, cfg: cfg}
}

// Speak plays text and returns when playback finished, failed on every
// backend, timed out, or was stopped.
func (d *Dispatcher) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	d.play.Lock()
	defer d.play.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	gen := d.track(cancel)
	defer d.untrack(gen)

	err := d.speakChain(ctx, text)
	if err != nil && errors.Is(err, ErrExhausted) && d.cfg.OnExhausted != nil {
		d.cfg.OnExhausted(text, err)
	}
	return err
}

// SpeakAsync starts an utterance without waiting for it. The returned
// channel closes when playback ends.
func (d *Dispatcher) SpeakAsync(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Speak(ctx, text); err != nil {
			log.Debug("Async utterance dropped", "err", err)
		}
	}()
	return done
}

// Stop cancels the utterance that is currently playing, if any.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Dispatcher) track(cancel context.CancelFunc) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.cancel = cancel
	return d.gen
}

func (d *Dispatcher) untrack(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen && d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Dispatcher) speakChain(ctx context.Context, text string) error {
	var errs []error
	for _, b := range d.backends {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("speak: %w", err)
		}

		err := speakOne(ctx, b, text)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("speak via %s: %w", b.Name(), ctx.Err())
		}

		log.Warn("Speech backend failed", "backend", b.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

// speakOne waits for b on its own goroutine so a backend that ignores ctx
// still cannot hold the chain past the utterance deadline.
func speakOne(ctx context.Context, b Backend, text string) error {
	c := completion.New[error]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.Resolve(fmt.Errorf("backend panic: %v", r))
			}
		}()
		c.Resolve(b.Speak(ctx, text))
	}()

	select {
	case <-c.Done():
		return c.Value()
	case <-ctx.Done():
		return ctx.Err()
	}
}
