package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpilot/pkg/protocol"
)

type fakeTransport struct {
	sent  []any
	reply *protocol.Message
	err   error
}

func (f *fakeTransport) Transmit(v any) error {
	f.sent = append(f.sent, v)
	return f.err
}

func (f *fakeTransport) TransmitReceive(_ context.Context, v any) (*protocol.Message, error) {
	f.sent = append(f.sent, v)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func TestDevices_Flashlight(t *testing.T) {
	tr := &fakeTransport{reply: &protocol.Message{Verb: "OK", Noun: "LAMP"}}
	d := NewDevices(tr)

	require.NoError(t, d.Flashlight(context.Background(), true))
	require.NoError(t, d.Switch(context.Background(), "Lamp", false))

	assert.Equal(t, []any{
		[]string{"VERTEX", "ON", "LAMP"},
		[]string{"VERTEX", "OFF", "LAMP"},
	}, tr.sent)
}

func TestDevices_Errors(t *testing.T) {
	d := NewDevices(&fakeTransport{reply: &protocol.Message{Verb: "ERR", Noun: "BUSY"}})
	assert.Error(t, d.Flashlight(context.Background(), true))

	d = NewDevices(&fakeTransport{err: errors.New("offline")})
	assert.Error(t, d.Flashlight(context.Background(), true))

	assert.Error(t, d.Switch(context.Background(), "toaster", true))
}

func TestStatePublisher(t *testing.T) {
	tr := &fakeTransport{}
	require.NoError(t, NewStatePublisher(tr).Publish("listening"))
	assert.Equal(t, []any{protocol.Message{To: "ALL", Verb: "STATE", Noun: "LISTENING"}}, tr.sent)
}
