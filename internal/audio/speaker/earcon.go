package speaker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

// Earcon is a short cue played when the microphone opens.
type Earcon struct {
	path string

	once   sync.Once
	buf    *beep.Buffer
	format beep.Format
	err    error
}

func NewEarcon(path string) *Earcon {
	return &Earcon{path: path}
}

func (e *Earcon) load() error {
	e.once.Do(func() {
		f, err := os.Open(e.path)
		if err != nil {
			e.err = fmt.Errorf("open earcon: %w", err)
			return
		}

		streamer, format, err := mp3.Decode(f)
		if err != nil {
			e.err = fmt.Errorf("decode earcon: %w", err)
			return
		}
		defer streamer.Close()

		e.format = format
		e.buf = beep.NewBuffer(format)
		e.buf.Append(streamer)
	})
	return e.err
}

func (e *Earcon) Play(ctx context.Context) error {
	if err := e.load(); err != nil {
		return err
	}
	return Play(ctx, e.buf.Streamer(0, e.buf.Len()), e.format)
}
