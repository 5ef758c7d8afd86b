package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const TargetRate = 16000

type Options struct {
	MaxSamples int
}

// decoded is interleaved PCM before normalization.
type decoded struct {
	samples  []float32
	channels int
	rate     int
}

var extensions = map[string]bool{
	".wav": true,
	".mp3": true,
	".ogg": true,
	".oga": true,
	".opus": true,
}

func Supported(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// ListClips returns the supported audio files in dir in lexical order.
func ListClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// DecodeFile converts an audio file to mono 16 kHz float32 samples.
func DecodeFile(path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := decode(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return normalize(d, opt), nil
}

func decode(f io.ReadSeeker, ext string) (decoded, error) {
	switch ext {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(f)
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return decoded{}, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV(f)
	case "OggS":
		return decodeOgg(f)
	}
	return decoded{}, fmt.Errorf("unsupported format %q", ext)
}

func decodeOgg(f io.ReadSeeker) (decoded, error) {
	d, err := decodeVorbis(f)
	if err == nil {
		return d, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return decoded{}, serr
	}
	d, oerr := decodeOpus(f)
	if oerr != nil {
		return decoded{}, fmt.Errorf("neither vorbis (%v) nor opus (%w)", err, oerr)
	}
	return d, nil
}

func decodeWAV(r io.ReadSeeker) (decoded, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return decoded{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return decoded{}, err
	}
	if pb == nil || pb.Data == nil {
		return decoded{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}

	d := decoded{samples: intsToFloat32(pb.Data, bd), channels: 1, rate: 44100}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			d.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			d.rate = pb.Format.SampleRate
		}
	}
	return d, nil
}

func decodeMP3(r io.Reader) (decoded, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return decoded{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return decoded{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return decoded{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always produces interleaved stereo
	return decoded{samples: int16sToFloat32(ints), channels: 2, rate: rate}, nil
}

func decodeVorbis(r io.Reader) (decoded, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return decoded{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return decoded{}, errors.New("invalid ogg/vorbis stream")
	}
	return decoded{samples: pcm, channels: format.Channels, rate: format.SampleRate}, nil
}

func normalize(d decoded, opt Options) []float32 {
	x := downmix(d.samples, d.channels)
	x = resampleLinear(x, d.rate, TargetRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func intsToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(math.Max(-1, math.Min(1, float64(v)*scale)))
	}
	return out
}

func int16sToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		switch {
		case i0 >= len(in)-1:
			out[i] = in[len(in)-1]
		default:
			a := float32(src - float64(i0))
			out[i] = in[i0]*(1-a) + in[i0+1]*a
		}
	}
	return out
}
