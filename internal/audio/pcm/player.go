package pcm

import (
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/gordonklaus/portaudio"
)

const playFrames = 1024

// PlayS16 streams signed 16-bit little-endian mono samples from r to the
// default output device until r is drained or ctx ends.
func PlayS16(ctx context.Context, r io.Reader, sampleRate float64) error {
	if err := Init(); err != nil {
		return err
	}

	buf := make([]int16, playFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, len(buf), buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	raw := make([]byte, playFrames*2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, raw)
		if n > 0 {
			samples := n / 2
			for i := 0; i < samples; i++ {
				buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
			}
			for i := samples; i < len(buf); i++ {
				buf[i] = 0
			}
			if werr := stream.Write(); werr != nil {
				return werr
			}
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
