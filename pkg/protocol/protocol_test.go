package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	msg, err := Parse("VOXPILOT:ok:lamp:on:VERTEX")
	require.NoError(t, err)
	assert.Equal(t, &Message{To: "VOXPILOT", Verb: "OK", Noun: "LAMP", Args: []string{"on"}, From: "VERTEX"}, msg)
	assert.Equal(t, "VOXPILOT:OK:LAMP:on:VERTEX", msg.String())
	assert.False(t, msg.IsError())
}

func TestParse_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"A:B:C",
		"A:B C:D:E",
		"A:B:C:bad/arg:E",
		"$$:ON:LAMP:VOX",
	} {
		_, err := Parse(line)
		assert.Error(t, err, line)
	}
}

func TestParse_BroadcastAndHexIDs(t *testing.T) {
	msg, err := Parse("ALL:STATE:LISTENING:0A")
	require.NoError(t, err)
	assert.Equal(t, "ALL", msg.To)
	assert.Equal(t, "0A", msg.From)
}

type hub struct {
	mu       sync.Mutex
	received []string
}

func (h *hub) serve(t *testing.T) *httptest.Server {
	up := ws.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.mu.Lock()
			h.received = append(h.received, string(data))
			h.mu.Unlock()

			parts := strings.Split(string(data), ":")
			if parts[0] == "VERTEX" {
				reply := "VOXPILOT:OK:" + parts[2] + ":VERTEX"
				_ = conn.WriteMessage(ws.TextMessage, []byte(reply))
			}
		}
	}))
}

func TestProtocol_TransmitReceive(t *testing.T) {
	h := &hub{}
	srv := h.serve(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ptcl, err := NewProtocol(ctx, PtclConfig{
		Shard:   "VOXPILOT",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: time.Second,
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ptcl.Run(ctx)
	}()

	reply, err := ptcl.TransmitReceive(ctx, []string{"VERTEX", "ON", "LAMP"})
	require.NoError(t, err)
	assert.Equal(t, "OK", reply.Verb)
	assert.Equal(t, "LAMP", reply.Noun)

	require.NoError(t, ptcl.Transmit(Message{To: "ALL", Verb: "STATE", Noun: "LISTENING"}))
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.received) == 2
	}, time.Second, 5*time.Millisecond)
	h.mu.Lock()
	assert.Equal(t, "ALL:STATE:LISTENING:VOXPILOT", h.received[1])
	h.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestProtocol_NoReplyTimesOut(t *testing.T) {
	h := &hub{}
	srv := h.serve(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ptcl, err := NewProtocol(ctx, PtclConfig{
		Shard:   "VOXPILOT",
		Url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: 30 * time.Millisecond,
	})
	require.NoError(t, err)
	go func() { _ = ptcl.Run(ctx) }()

	_, err = ptcl.TransmitReceive(ctx, []string{"KITCHEN", "ON", "FAN"})
	assert.ErrorIs(t, err, ErrNoReply)
}
