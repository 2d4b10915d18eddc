package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStdioTransport_RoundTrip(t *testing.T) {
	var wire bytes.Buffer
	sender := NewStdioTransport(strings.NewReader(""), &wire)

	msg := NewRequest(42, "tools/call", map[string]any{"name": "fetch"})
	require.NoError(t, sender.Send(context.Background(), msg))

	// The frame must carry a Content-Length header and a blank separator line.
	raw := wire.String()
	assert.True(t, strings.HasPrefix(raw, "Content-Length: "))
	assert.Contains(t, raw, "\r\n\r\n")

	receiver := NewStdioTransport(bytes.NewReader(wire.Bytes()), io.Discard)
	got, err := receiver.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0", got.JSONRPC)
	assert.EqualValues(t, 42, got.ID)
	assert.Equal(t, "tools/call", got.Method)
	assert.Equal(t, "fetch", got.Params["name"])
}

func TestStdioTransport_MultipleFrames(t *testing.T) {
	var wire bytes.Buffer
	sender := NewStdioTransport(strings.NewReader(""), &wire)

	require.NoError(t, sender.Send(context.Background(), NewRequest(1, "initialize", nil)))
	require.NoError(t, sender.Send(context.Background(), NewRequest(2, "tools/list", nil)))

	receiver := NewStdioTransport(bytes.NewReader(wire.Bytes()), io.Discard)

	first, err := receiver.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "initialize", first.Method)

	second, err := receiver.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tools/list", second.Method)

	_, err = receiver.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStdioTransport_EOFOnEmptyInput(t *testing.T) {
	tr := NewStdioTransport(strings.NewReader(""), io.Discard)
	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStdioTransport_MalformedBody(t *testing.T) {
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len("not json"), "not json")
	tr := NewStdioTransport(strings.NewReader(frame), io.Discard)

	_, err := tr.Receive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestStdioTransport_ClosedRejectsCalls(t *testing.T) {
	tr := NewStdioTransport(strings.NewReader(""), io.Discard)
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Send(context.Background(), NewRequest(1, "ping", nil)), ErrTransportClosed)
	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestWebSocketTransport_SendReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"mcp"}})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		// Echo the payload back to the client.
		_ = conn.Write(ctx, websocket.MessageText, data)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := DefaultWSConfig()
	cfg.ReconnectEnabled = false
	cfg.EnableHeartbeat = false
	tr := NewWebSocketTransport(wsURL, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Connect(ctx))
	assert.Equal(t, WSStateConnected, tr.State())

	require.NoError(t, tr.Send(ctx, NewRequest(7, "tools/list", nil)))

	got, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.ID)
	assert.Equal(t, "tools/list", got.Method)

	require.NoError(t, tr.Close())
	assert.Equal(t, WSStateClosed, tr.State())
}

func TestWebSocketTransport_HeartbeatOutlivesDialContext(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"mcp"}})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg Message
			if json.Unmarshal(data, &msg) == nil && msg.Method == "ping" {
				pings.Add(1)
				pong, _ := json.Marshal(&Message{JSONRPC: "2.0", Method: "pong"})
				if conn.Write(ctx, websocket.MessageText, pong) != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultWSConfig()
	cfg.ReconnectEnabled = false
	cfg.HeartbeatInterval = 20 * time.Millisecond
	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), cfg, zap.NewNop())

	// A bounded dial context released right after Connect must not take the
	// heartbeat goroutine down with it.
	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, tr.Connect(dialCtx))
	cancel()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, 3*time.Second, 10*time.Millisecond,
		"expected heartbeat pings after the dial context was cancelled")
	require.NoError(t, tr.Close())
}

func TestWebSocketTransport_TerminalAfterReconnectExhausted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"mcp"}})
		if err != nil {
			return
		}
		<-release
		conn.Close(websocket.StatusGoingAway, "bye")
	}))

	cfg := DefaultWSConfig()
	cfg.EnableHeartbeat = false
	cfg.MaxReconnects = 2
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx))

	// Drop the connection and the listener so every redial is refused.
	close(release)
	srv.Close()

	_, err := tr.Receive(ctx)
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.Equal(t, WSStateFailed, tr.State())

	// Once terminal, both directions fail fast with the sentinel.
	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.ErrorIs(t, tr.Send(ctx, NewRequest(1, "ping", nil)), ErrTransportClosed)
}

func TestServe_ExitsWhenReconnectExhausted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"mcp"}})
		if err != nil {
			return
		}
		<-release
		conn.Close(websocket.StatusGoingAway, "bye")
	}))

	cfg := DefaultWSConfig()
	cfg.EnableHeartbeat = false
	cfg.MaxReconnects = 2
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx))

	server := NewServer("test", "0.0.1", time.Second, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, tr) }()

	close(release)
	srv.Close()

	// A permanently lost host connection must terminate the serve loop
	// instead of spinning on instant receive errors.
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop kept running after reconnection was exhausted")
	}
}

func TestWebSocketTransport_SendBeforeConnect(t *testing.T) {
	cfg := DefaultWSConfig()
	cfg.ReconnectEnabled = false
	tr := NewWebSocketTransport("ws://127.0.0.1:0", cfg, zap.NewNop())

	err := tr.Send(context.Background(), NewRequest(1, "ping", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
