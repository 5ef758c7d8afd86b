package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestServer_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := Listen(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ctx, func(_ context.Context, msg ControlMessage) Reply {
			switch msg.Cmd {
			case CmdSay:
				return Reply{OK: true, State: "thinking"}
			case CmdStatus:
				return Reply{OK: true, State: "listening"}
			}
			return Reply{Error: "unknown command " + msg.Cmd}
		})
	}()

	sendCtx, sendCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer sendCancel()

	r, err := Send(sendCtx, path, ControlMessage{Cmd: CmdStatus})
	require.NoError(t, err)
	assert.Equal(t, Reply{OK: true, State: "listening"}, r)

	r, err = Send(sendCtx, path, ControlMessage{Cmd: CmdSay, Text: "hello"})
	require.NoError(t, err)
	assert.True(t, r.OK)

	r, err = Send(sendCtx, path, ControlMessage{Cmd: "dance"})
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, "unknown command dance", r.Error)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = Send(sendCtx, path, ControlMessage{Cmd: CmdStatus})
	assert.Error(t, err)
}
