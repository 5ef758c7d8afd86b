package pcm

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
	frameMs    = 20
)

var ErrNoSpeech = errors.New("no speech detected")

var (
	initOnce sync.Once
	initErr  error
)

// Init initializes portaudio once for the process.
func Init() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

func Terminate() {
	portaudio.Terminate()
}

type RecordOptions struct {
	// SilenceWindow ends the utterance after this much trailing silence.
	SilenceWindow time.Duration
	// LeadTimeout gives up when nobody starts talking in time.
	LeadTimeout time.Duration
	MaxLength   time.Duration
	Threshold   float64
}

func (o *RecordOptions) withDefaults() {
	if o.SilenceWindow <= 0 {
		o.SilenceWindow = 600 * time.Millisecond
	}
	if o.LeadTimeout <= 0 {
		o.LeadTimeout = 5 * time.Second
	}
	if o.MaxLength <= 0 {
		o.MaxLength = 10 * time.Second
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.015
	}
}

// Recorder reads mono 16 kHz samples from the default input device.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

// RecordUtterance records until the speaker goes quiet for the silence
// window. It returns ErrNoSpeech if nothing crosses the threshold within the
// lead timeout, and stops early with ctx.Err() when ctx ends.
func (r *Recorder) RecordUtterance(ctx context.Context, opt RecordOptions) ([]float32, error) {
	opt.withDefaults()

	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)

	maxFrames := int(opt.MaxLength / (frameMs * time.Millisecond))
	leadFrames := int(opt.LeadTimeout / (frameMs * time.Millisecond))
	silenceLimit := int(opt.SilenceWindow / (frameMs * time.Millisecond))

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > opt.Threshold {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}

		if !speaking {
			if i >= leadFrames {
				return nil, ErrNoSpeech
			}
			continue
		}

		silenceFrames++
		out = append(out, buf...)
		if silenceFrames >= silenceLimit {
			break
		}
	}

	if !speaking {
		return nil, ErrNoSpeech
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
