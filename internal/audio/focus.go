package audio

import (
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type FocusConfig struct {
	DuckFactor float64
	Fade       time.Duration
	// ReleaseTimeout bounds the restore fade run on Release.
	ReleaseTimeout time.Duration
}

func DefaultFocusConfig() FocusConfig {
	return FocusConfig{
		DuckFactor:     0.2,
		Fade:           120 * time.Millisecond,
		ReleaseTimeout: 2 * time.Second,
	}
}

// FocusArbiter grants the speech recognizer transient exclusive use of the
// microphone. Other applications' playback is ducked while focus is held.
type FocusArbiter struct {
	ducker *Ducker
	cfg    FocusConfig

	mu   sync.Mutex
	held bool

	lost atomic.Bool
}

func NewFocusArbiter(d *Ducker, cfg FocusConfig) *FocusArbiter {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = DefaultFocusConfig().ReleaseTimeout
	}
	return &FocusArbiter{ducker: d, cfg: cfg}
}

// Acquire requests focus. A failed duck still leaves the arbiter in the held
// state so the following Release is balanced, but reports the denial.
func (f *FocusArbiter) Acquire(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held {
		return !f.lost.Load()
	}
	f.held = true

	if err := f.ducker.DuckOthers(ctx, f.cfg.DuckFactor, f.cfg.Fade); err != nil {
		log.Warn("Audio focus request failed", "err", err)
		f.lost.Store(true)
		return false
	}

	f.lost.Store(false)
	return true
}

// Release gives focus back. It is safe to call without a matching Acquire
// and after ctx cancellation of the listen attempt.
func (f *FocusArbiter) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.held {
		return
	}
	f.held = false

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ReleaseTimeout)
	defer cancel()

	if err := f.ducker.UnduckOthers(ctx, f.cfg.Fade); err != nil {
		log.Warn("Audio focus release failed", "err", err)
	}
}

func (f *FocusArbiter) HasFocus() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held && !f.lost.Load()
}

// OnFocusChange records a focus notification from the platform.
func (f *FocusArbiter) OnFocusChange(lost bool) {
	if f.lost.Swap(lost) != lost {
		log.Debug("Audio focus changed", "lost", lost)
	}
}

// Watch polls for other applications reading the microphone and reports them
// as focus loss until ctx ends.
func (f *FocusArbiter) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		n, err := f.ducker.ForeignRecorders(ctx)
		if err != nil {
			log.Debug("Focus watch failed", "err", err)
			continue
		}
		f.OnFocusChange(n > 0)
	}
}
