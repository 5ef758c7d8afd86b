package recognizer

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"

	"voxpilot/internal/audio/pcm"
	"voxpilot/internal/listen"
	"voxpilot/pkg/stt"
)

// Transcriber is the part of *stt.Transcriber the sessions use.
type Transcriber interface {
	TranscribePCM(ctx context.Context, pcm16k []float32, opt stt.Options) (stt.Result, error)
}

// Mic records from the default input device and transcribes with whisper.
type Mic struct {
	rec     *pcm.Recorder
	tr      Transcriber
	threads int
}

func NewMic(rec *pcm.Recorder, tr Transcriber, threads int) *Mic {
	return &Mic{rec: rec, tr: tr, threads: threads}
}

func (m *Mic) NewSession() (listen.Session, error) {
	return &session{
		capture: func(ctx context.Context, opts listen.StartOptions) ([]float32, error) {
			return m.rec.RecordUtterance(ctx, pcm.RecordOptions{SilenceWindow: opts.SilenceWindow})
		},
		tr:      m.tr,
		threads: m.threads,
	}, nil
}

type captureFunc func(ctx context.Context, opts listen.StartOptions) ([]float32, error)

// session is single use: Start may be called once.
type session struct {
	capture captureFunc
	tr      Transcriber
	threads int

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

var errStarted = errors.New("session already started")

func (s *session) Start(ctx context.Context, opts listen.StartOptions, cb listen.Callbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx, opts, cb)
	return nil
}

func (s *session) run(ctx context.Context, opts listen.StartOptions, cb listen.Callbacks) {
	samples, err := s.capture(ctx, opts)
	switch {
	case ctx.Err() != nil:
		return
	case errors.Is(err, pcm.ErrNoSpeech):
		cb.OnError(listen.ErrSpeechTimeout)
		return
	case err != nil:
		log.Warn("Audio capture failed", "err", err)
		cb.OnError(listen.ErrAudio)
		return
	}

	var heard []string
	res, err := s.tr.TranscribePCM(ctx, samples, stt.Options{
		Language: opts.Language,
		Threads:  s.threads,
		OnSegment: func(text string) {
			if text == "" || cb.OnPartial == nil {
				return
			}
			heard = append(heard, text)
			cb.OnPartial(strings.Join(heard, " "))
		},
	})
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		log.Warn("Transcription failed", "err", err)
		cb.OnError(listen.ErrClient)
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		cb.OnError(listen.ErrNoMatch)
		return
	}
	cb.OnFinal(text)
}

func (s *session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *session) Close() {
	s.Cancel()
}
