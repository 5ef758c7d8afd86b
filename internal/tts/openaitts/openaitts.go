package openaitts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/faiface/beep/mp3"
	openai "github.com/openai/openai-go/v3"

	"voxpilot/internal/audio/pcm"
	"voxpilot/internal/audio/speaker"
)

// OpenAI's raw pcm response format is 24 kHz signed 16-bit mono.
const pcmRate = 24000

type Options struct {
	Model        string
	Voice        string
	Instructions string
}

func (o Options) params(text string, format openai.AudioSpeechNewParamsResponseFormat) openai.AudioSpeechNewParams {
	p := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(o.Voice),
		ResponseFormat: format,
	}
	if o.Instructions != "" {
		p.Instructions = openai.String(o.Instructions)
	}
	return p
}

func request(ctx context.Context, api openai.Client, p openai.AudioSpeechNewParams) (*http.Response, error) {
	resp, err := api.Audio.Speech.New(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("speech request: status %d", resp.StatusCode)
	}
	return resp, nil
}

// Streaming plays raw PCM while it is still downloading, so the first words
// are heard before synthesis of the whole reply finishes.
type Streaming struct {
	api  openai.Client
	opts Options
}

func NewStreaming(api openai.Client, opts Options) *Streaming {
	return &Streaming{api: api, opts: opts}
}

func (s *Streaming) Name() string { return "openai-stream" }

func (s *Streaming) Speak(ctx context.Context, text string) error {
	resp, err := request(ctx, s.api, s.opts.params(text, openai.AudioSpeechNewParamsResponseFormatPCM))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return pcm.PlayS16(ctx, resp.Body, pcmRate)
}

// Buffered downloads the full MP3 and plays it through the beep speaker.
type Buffered struct {
	api  openai.Client
	opts Options
}

func NewBuffered(api openai.Client, opts Options) *Buffered {
	return &Buffered{api: api, opts: opts}
}

func (b *Buffered) Name() string { return "openai-buffered" }

func (b *Buffered) Speak(ctx context.Context, text string) error {
	resp, err := request(ctx, b.api, b.opts.params(text, openai.AudioSpeechNewParamsResponseFormatMP3))
	if err != nil {
		return err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read speech: %w", err)
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	return speaker.Play(ctx, streamer, format)
}
