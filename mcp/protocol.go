package mcp

import (
	"fmt"

	"github.com/BaSui01/fetchgate/types"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 message. A request carries Method (and an ID
// unless it is a notification); a response carries Result or Error.
type Message struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a JSON-RPC request message.
func NewRequest(id any, method string, params map[string]any) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewResponse builds a successful JSON-RPC response.
func NewResponse(id any, result any) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse builds a JSON-RPC error response.
func NewErrorResponse(id any, code int, message string, data any) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// IsNotification reports whether the message is a notification (no ID, so no
// response is expected).
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// ToolDefinition describes a tool advertised via tools/list. InputSchema is
// a JSON Schema object serialized verbatim to the client.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Validate checks that the definition is complete enough to advertise.
func (d *ToolDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.InputSchema == nil {
		return fmt.Errorf("tool %s: input schema is required", d.Name)
	}
	return nil
}

// ToolResult is the tools/call result payload. IsError marks an in-band tool
// failure; protocol-level failures use JSON-RPC error responses instead.
type ToolResult struct {
	Content []types.ContentBlock `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// TextResult wraps plain text in a ToolResult.
func TextResult(text string, isError bool) *ToolResult {
	return &ToolResult{
		Content: []types.ContentBlock{types.TextBlock(text)},
		IsError: isError,
	}
}

// ServerInfo identifies the server during the initialize handshake.
type ServerInfo struct {
	Name            string       `json:"name"`
	Version         string       `json:"version"`
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
}

// Capabilities advertises which optional protocol features are available.
type Capabilities struct {
	Tools   bool `json:"tools"`
	Logging bool `json:"logging"`
}
