package speaker

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"voxpilot/pkg/completion"
)

var (
	once sync.Once
	err  error
	rate beep.SampleRate
)

// Init opens the shared output device at the first rate it is asked for.
// Later callers get that rate back and must resample to it.
func Init(want beep.SampleRate) (beep.SampleRate, error) {
	once.Do(func() {
		rate = want
		err = speaker.Init(want, want.N(time.Second/10))
	})
	return rate, err
}

// Play plays s at its native rate and waits for it to finish. Canceling ctx
// clears the speaker so nothing keeps playing.
func Play(ctx context.Context, s beep.Streamer, format beep.Format) error {
	out, err := Init(format.SampleRate)
	if err != nil {
		return err
	}
	if format.SampleRate != out {
		s = beep.Resample(4, format.SampleRate, out, s)
	}

	done := completion.New[struct{}]()
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		done.Resolve(struct{}{})
	})))

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		speaker.Clear()
		done.Resolve(struct{}{})
		return ctx.Err()
	}
}
