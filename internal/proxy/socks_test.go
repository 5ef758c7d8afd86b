package proxy

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocksClient_Direct(t *testing.T) {
	c, err := NewSocksClient("", 0)
	require.NoError(t, err)
	assert.Nil(t, c.Transport)
	assert.Equal(t, 120*time.Second, c.Timeout)
}

func TestNewSocksClient_DialsProxy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		close(accepted)
		conn.Close()
	}()

	c, err := NewSocksClient(ln.Addr().String(), time.Second)
	require.NoError(t, err)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = tr.DialContext(ctx, "tcp", "example.com:443")
	assert.Error(t, err, "the fake proxy hangs up before the handshake")

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatal("proxy was never dialed")
	}
}
