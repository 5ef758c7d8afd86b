package recognizer

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"voxpilot/internal/listen"
	"voxpilot/pkg/audioconv"
)

// Clips replays pre-recorded utterances, one file per listening attempt.
// Once the directory is exhausted every session reports silence.
type Clips struct {
	tr      Transcriber
	threads int

	mu    sync.Mutex
	clips []string
}

func NewClips(dir string, tr Transcriber, threads int) (*Clips, error) {
	clips, err := audioconv.ListClips(dir)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	log.Info("Replay recognizer loaded", "dir", dir, "clips", len(clips))
	return &Clips{tr: tr, threads: threads, clips: clips}, nil
}

func (c *Clips) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clips)
}

func (c *Clips) next() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.clips) == 0 {
		return "", false
	}
	p := c.clips[0]
	c.clips = c.clips[1:]
	return p, true
}

func (c *Clips) NewSession() (listen.Session, error) {
	path, ok := c.next()
	return &session{
		capture: func(ctx context.Context, opts listen.StartOptions) ([]float32, error) {
			if !ok {
				return waitSilence(ctx, opts)
			}
			log.Debug("Replaying clip", "path", path)
			return audioconv.DecodeFile(path, audioconv.Options{})
		},
		tr:      c.tr,
		threads: c.threads,
	}, nil
}
