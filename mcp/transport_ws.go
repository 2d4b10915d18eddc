package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// WSState is the connection state of a WebSocket transport.
type WSState string

const (
	WSStateDisconnected WSState = "disconnected"
	WSStateConnecting   WSState = "connecting"
	WSStateConnected    WSState = "connected"
	WSStateReconnecting WSState = "reconnecting"
	WSStateFailed       WSState = "failed"
	WSStateClosed       WSState = "closed"
)

// WSConfig tunes heartbeat and reconnection behavior.
type WSConfig struct {
	HeartbeatInterval time.Duration // interval between ping messages
	MaxReconnects     int           // reconnect attempts before giving up
	ReconnectDelay    time.Duration // base delay for exponential backoff
	MaxBackoff        time.Duration // backoff ceiling
	ReconnectEnabled  bool
	EnableHeartbeat   bool
	Subprotocols      []string
}

// DefaultWSConfig returns the production defaults.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HeartbeatInterval: 30 * time.Second,
		MaxReconnects:     5,
		ReconnectDelay:    time.Second,
		MaxBackoff:        30 * time.Second,
		ReconnectEnabled:  true,
		EnableHeartbeat:   true,
		Subprotocols:      []string{"mcp"},
	}
}

// WebSocketTransport carries JSON-RPC messages over a WebSocket connection
// that the server dials out to, with heartbeat and exponential-backoff
// reconnection.
type WebSocketTransport struct {
	url    string
	config WSConfig
	logger *zap.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	state          WSState
	closed         bool
	failed         bool // reconnect attempts exhausted, connection is gone for good
	reconnecting   bool
	reconnectCount int
	lastActivity   time.Time
	done           chan struct{}
}

// NewWebSocketTransport creates a transport for the given endpoint URL. Call
// Connect before Send or Receive.
func NewWebSocketTransport(url string, config WSConfig, logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	return &WebSocketTransport{
		url:    url,
		config: config,
		logger: logger.With(zap.String("component", "mcp_ws_transport")),
		state:  WSStateDisconnected,
		done:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (t *WebSocketTransport) State() WSState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *WebSocketTransport) setState(s WSState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Connect dials the endpoint and starts the heartbeat goroutine. The
// context bounds the dial only; the heartbeat runs for the transport's
// lifetime and is stopped by Close, so callers are free to cancel the dial
// context once Connect returns.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.setState(WSStateConnecting)

	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{
		Subprotocols: t.config.Subprotocols,
	})
	if err != nil {
		t.setState(WSStateDisconnected)
		return fmt.Errorf("websocket connect: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.lastActivity = time.Now()
	t.mu.Unlock()

	t.setState(WSStateConnected)

	if t.config.EnableHeartbeat {
		go t.heartbeatLoop()
	}
	return nil
}

// Send writes one message as a text frame. On write failure it reconnects
// (when enabled) and retries the write once.
func (t *WebSocketTransport) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	failed := t.failed
	t.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}
	if failed {
		return fmt.Errorf("%w: reconnect attempts exhausted", ErrTransportClosed)
	}
	if conn == nil {
		return fmt.Errorf("websocket: not connected")
	}

	writeErr := conn.Write(ctx, websocket.MessageText, body)
	if writeErr == nil {
		return nil
	}

	if !t.config.ReconnectEnabled {
		return writeErr
	}

	t.logger.Warn("send failed, attempting reconnect", zap.Error(writeErr))
	if reconnErr := t.tryReconnect(ctx); reconnErr != nil {
		if errors.Is(reconnErr, ErrTransportClosed) {
			return reconnErr
		}
		return fmt.Errorf("send failed and reconnect failed: %w", writeErr)
	}

	t.mu.Lock()
	conn = t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket: not connected after reconnect")
	}
	return conn.Write(ctx, websocket.MessageText, body)
}

// Receive reads the next message. Heartbeat pongs are consumed silently. On
// read failure it reconnects (when enabled) and keeps reading from the new
// connection.
func (t *WebSocketTransport) Receive(ctx context.Context) (*Message, error) {
	for {
		t.mu.Lock()
		conn := t.conn
		closed := t.closed
		failed := t.failed
		t.mu.Unlock()

		if closed {
			return nil, ErrTransportClosed
		}
		if failed {
			return nil, fmt.Errorf("%w: reconnect attempts exhausted", ErrTransportClosed)
		}
		if conn == nil {
			return nil, fmt.Errorf("websocket: not connected")
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.done:
				return nil, ErrTransportClosed
			default:
			}

			if !t.config.ReconnectEnabled {
				return nil, err
			}

			t.logger.Warn("receive failed, attempting reconnect", zap.Error(err))
			if reconnErr := t.tryReconnect(ctx); reconnErr != nil {
				// A terminal reconnect failure propagates the sentinel so
				// the serve loop shuts down instead of retrying forever.
				if errors.Is(reconnErr, ErrTransportClosed) {
					return nil, reconnErr
				}
				return nil, fmt.Errorf("receive failed and reconnect failed: %w", err)
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}

		t.mu.Lock()
		t.lastActivity = time.Now()
		t.mu.Unlock()

		if msg.Method == "pong" {
			continue
		}
		return &msg, nil
	}
}

// Close stops the heartbeat goroutine and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	conn := t.conn
	t.mu.Unlock()

	t.setState(WSStateClosed)

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "closing")
	}
	return nil
}

// heartbeatLoop pings the host until the transport is closed. It runs off
// the done channel rather than any caller context so a short-lived dial
// context cannot kill it.
func (t *WebSocketTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), t.config.HeartbeatInterval)
			ping := &Message{JSONRPC: "2.0", Method: "ping"}
			err := t.Send(pingCtx, ping)
			cancel()
			if err != nil {
				t.logger.Warn("heartbeat ping failed", zap.Error(err))
				// Send already ran the reconnect path when enabled; a
				// sentinel here means the connection is gone for good.
				if !t.config.ReconnectEnabled || errors.Is(err, ErrTransportClosed) {
					return
				}
			}
		}
	}
}

// tryReconnect re-dials with exponential backoff, up to MaxReconnects
// attempts. Only one reconnect runs at a time; concurrent callers wait for
// the in-progress attempt.
func (t *WebSocketTransport) tryReconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.reconnecting {
		t.mu.Unlock()
		return t.waitForReconnect(ctx)
	}
	t.reconnecting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.reconnecting = false
		t.mu.Unlock()
	}()

	t.setState(WSStateReconnecting)

	t.mu.Lock()
	oldConn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if oldConn != nil {
		_ = oldConn.Close(websocket.StatusNormalClosure, "reconnecting")
	}

	delay := t.config.ReconnectDelay
	for attempt := 1; ; attempt++ {
		t.mu.Lock()
		if t.reconnectCount >= t.config.MaxReconnects {
			t.failed = true
			t.mu.Unlock()
			t.setState(WSStateFailed)
			return fmt.Errorf("%w: max reconnect attempts (%d) reached", ErrTransportClosed, t.config.MaxReconnects)
		}
		t.reconnectCount++
		t.mu.Unlock()

		t.logger.Info("attempting reconnect",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return ErrTransportClosed
		case <-time.After(delay):
		}

		conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{
			Subprotocols: t.config.Subprotocols,
		})
		if err != nil {
			t.logger.Error("reconnect dial failed", zap.Error(err), zap.Int("attempt", attempt))
			delay *= 2
			if delay > t.config.MaxBackoff {
				delay = t.config.MaxBackoff
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.lastActivity = time.Now()
		t.reconnectCount = 0
		t.mu.Unlock()

		t.setState(WSStateConnected)
		t.logger.Info("reconnected", zap.Int("attempt", attempt))
		return nil
	}
}

func (t *WebSocketTransport) waitForReconnect(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return ErrTransportClosed
		case <-ticker.C:
			t.mu.Lock()
			reconnecting := t.reconnecting
			state := t.state
			t.mu.Unlock()
			if !reconnecting {
				switch state {
				case WSStateConnected:
					return nil
				case WSStateFailed:
					return fmt.Errorf("%w: reconnect attempts exhausted", ErrTransportClosed)
				default:
					return fmt.Errorf("reconnect finished in state %s", state)
				}
			}
		}
	}
}
