package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #57
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "voxpilot"
Sink Input #60
	Volume: front-left: 32768 /  50% / -18.06 dB
	Properties:
		application.name = "Spotify"
`

type fakePactl struct {
	mu      sync.Mutex
	outputs map[string]string
	err     error
	sets    map[string]string
}

func (p *fakePactl) run(_ context.Context, args ...string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if args[0] == "set-sink-input-volume" {
		if p.sets == nil {
			p.sets = map[string]string{}
		}
		p.sets[args[1]] = args[2]
		return "", nil
	}
	return p.outputs[strings.Join(args, " ")], nil
}

func TestParseStreams(t *testing.T) {
	streams := parseStreams(sinkInputs, "Sink Input #")

	require.Len(t, streams, 3)
	assert.Equal(t, streamInfo{ID: 41, Volume: 80, AppName: "Firefox"}, streams[0])
	assert.Equal(t, streamInfo{ID: 57, Volume: 100, AppName: "voxpilot"}, streams[1])
	assert.Equal(t, 50, streams[2].Volume)
}

func TestParseStreams_Empty(t *testing.T) {
	assert.Nil(t, parseStreams("", "Sink Input #"))
	assert.Nil(t, parseStreams("Sink Input #x\n", "Sink Input #"))
}

func TestDucker_DuckAndRestore(t *testing.T) {
	p := &fakePactl{outputs: map[string]string{"list sink-inputs": sinkInputs}}
	d := NewDucker([]string{"voxpilot"}, 10, p.run)

	require.NoError(t, d.DuckOthers(context.Background(), 0.2, 0))
	assert.True(t, d.Active())
	assert.Equal(t, "16%", p.sets["41"])
	assert.Equal(t, "10%", p.sets["60"])
	_, touchedSelf := p.sets["57"]
	assert.False(t, touchedSelf)

	require.NoError(t, d.UnduckOthers(context.Background(), 0))
	assert.False(t, d.Active())
	assert.Equal(t, "80%", p.sets["41"])
	assert.Equal(t, "50%", p.sets["60"])
}

func TestFocusArbiter_ReleaseAlwaysBalanced(t *testing.T) {
	p := &fakePactl{err: errors.New("no pulse")}
	f := NewFocusArbiter(NewDucker(nil, 0, p.run), DefaultFocusConfig())

	assert.False(t, f.Acquire(context.Background()))
	assert.False(t, f.HasFocus())
	f.Release()
	f.Release()

	p.err = nil
	p.outputs = map[string]string{"list sink-inputs": sinkInputs}
	assert.True(t, f.Acquire(context.Background()))
	assert.True(t, f.HasFocus())

	f.OnFocusChange(true)
	assert.False(t, f.HasFocus())
	f.OnFocusChange(false)
	assert.True(t, f.HasFocus())

	f.Release()
	assert.False(t, f.HasFocus())
}

func TestDucker_ForeignRecorders(t *testing.T) {
	p := &fakePactl{outputs: map[string]string{"list source-outputs": `Source Output #3
	Volume: mono: 65536 / 100%
	Properties:
		application.name = "Zoom"
Source Output #4
	Volume: mono: 65536 / 100%
	Properties:
		application.name = "voxpilot"
`}}
	d := NewDucker([]string{"voxpilot"}, 0, p.run)

	n, err := d.ForeignRecorders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
