package audioconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownmix(t *testing.T) {
	got := downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, got)
	assert.Equal(t, []float32{1, 2}, downmix([]float32{1, 2}, 1))
}

func TestResampleLinear(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = 0.25
	}
	out := resampleLinear(in, 48000, TargetRate)
	assert.Len(t, out, 16000)
	assert.InDelta(t, 0.25, out[100], 1e-6)

	assert.Equal(t, in, resampleLinear(in, TargetRate*3, TargetRate*3))
}

func TestNormalize_MaxSamples(t *testing.T) {
	d := decoded{samples: make([]float32, 3200), channels: 2, rate: TargetRate}
	assert.Len(t, normalize(d, Options{MaxSamples: 1000}), 1000)
	assert.Len(t, normalize(d, Options{}), 1600)
}

func TestListClips(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"02-time.wav", "01-hello.mp3", "notes.txt", "03-open.OGG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	clips, err := ListClips(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "01-hello.mp3"),
		filepath.Join(dir, "02-time.wav"),
		filepath.Join(dir, "03-open.OGG"),
	}, clips)
}

func TestDecodeFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.bin")
	require.NoError(t, os.WriteFile(path, []byte("garbage!"), 0o644))

	_, err := DecodeFile(path, Options{})
	assert.Error(t, err)
}
