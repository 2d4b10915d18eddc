package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrTransportClosed is returned by Send and Receive after Close.
var ErrTransportClosed = errors.New("mcp: transport is closed")

// Transport carries JSON-RPC messages between the server and its client.
type Transport interface {
	// Send writes one message. Safe for concurrent callers.
	Send(ctx context.Context, msg *Message) error
	// Receive blocks until the next message arrives.
	Receive(ctx context.Context) (*Message, error)
	// Close releases the transport. Further calls fail with ErrTransportClosed.
	Close() error
}

// ---------------------------------------------------------------------------
// StdioTransport — Content-Length framed messages over a byte stream
// ---------------------------------------------------------------------------

// StdioTransport frames messages with a Content-Length header followed by a
// blank line and the JSON body, over any reader/writer pair. In production
// the pair is os.Stdin/os.Stdout, which is why nothing else in the process
// may write to stdout.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewStdioTransport wraps the given stream pair.
func NewStdioTransport(reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Send writes one framed message.
func (t *StdioTransport) Send(_ context.Context, msg *Message) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := t.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Receive reads the next framed message. It returns io.EOF when the input
// stream ends, which the serve loop treats as a clean shutdown.
func (t *StdioTransport) Receive(_ context.Context) (*Message, error) {
	if t.isClosed() {
		return nil, ErrTransportClosed
	}

	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if line == "\r\n" || line == "\n" {
			break
		}
		if _, err := fmt.Sscanf(line, "Content-Length: %d", &contentLength); err == nil {
			continue
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing or invalid Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// Close marks the transport closed. The underlying streams are owned by the
// caller and are not closed here.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *StdioTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
