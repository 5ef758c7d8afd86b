package recognizer

import (
	"context"
	"time"

	"voxpilot/internal/audio/pcm"
	"voxpilot/internal/listen"
)

func waitSilence(ctx context.Context, opts listen.StartOptions) ([]float32, error) {
	t := time.NewTimer(opts.SilenceWindow)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, pcm.ErrNoSpeech
	}
}
