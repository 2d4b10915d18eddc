package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultToolTimeout bounds a single tools/call when the server is built
// without an explicit timeout.
const DefaultToolTimeout = 60 * time.Second

// ToolHandler executes a tool call. A returned ToolResult with IsError set
// reports an in-band tool failure; a non-nil error reports a protocol-level
// failure and becomes a JSON-RPC error response.
type ToolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// Server is a tools-only MCP server. It is safe for concurrent registration
// and dispatch.
type Server struct {
	info ServerInfo

	toolsMu  sync.RWMutex
	tools    map[string]*ToolDefinition
	handlers map[string]ToolHandler

	toolTimeout time.Duration
	logger      *zap.Logger
}

// NewServer creates an MCP server advertising tool support.
func NewServer(name, version string, toolTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	return &Server{
		info: ServerInfo{
			Name:            name,
			Version:         version,
			ProtocolVersion: ProtocolVersion,
			Capabilities: Capabilities{
				Tools:   true,
				Logging: true,
			},
		},
		tools:       make(map[string]*ToolDefinition),
		handlers:    make(map[string]ToolHandler),
		toolTimeout: toolTimeout,
		logger:      logger.With(zap.String("component", "mcp_server")),
	}
}

// Info returns the server identity sent during initialize.
func (s *Server) Info() ServerInfo {
	return s.info
}

// RegisterTool adds a tool to the registry. Registering the same name twice
// replaces the earlier definition.
func (s *Server) RegisterTool(def *ToolDefinition, handler ToolHandler) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}

	s.toolsMu.Lock()
	s.tools[def.Name] = def
	s.handlers[def.Name] = handler
	s.toolsMu.Unlock()

	s.logger.Info("tool registered", zap.String("name", def.Name))
	return nil
}

// ListTools returns the registered tool definitions sorted by name.
func (s *Server) ListTools() []ToolDefinition {
	s.toolsMu.RLock()
	defer s.toolsMu.RUnlock()

	result := make([]ToolDefinition, 0, len(s.tools))
	for _, def := range s.tools {
		result = append(result, *def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// CallTool runs the named tool under the configured timeout. Handler panics
// are contained and reported as errors rather than tearing down the serve
// loop.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (result *ToolResult, err error) {
	s.toolsMu.RLock()
	handler, ok := s.handlers[name]
	s.toolsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	invocationID := uuid.NewString()
	log := s.logger.With(
		zap.String("tool", name),
		zap.String("invocation_id", invocationID),
	)
	log.Debug("calling tool")

	callCtx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("tool handler panicked", zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("tool %s: internal error", name)
		}
	}()

	start := time.Now()
	result, err = handler(callCtx, args)
	if err != nil {
		log.Error("tool call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	log.Debug("tool call completed",
		zap.Bool("is_error", result != nil && result.IsError),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// =============================================================================
// Message Dispatcher (JSON-RPC 2.0)
// =============================================================================

// HandleMessage dispatches one incoming JSON-RPC message and returns the
// response to send, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, msg *Message) *Message {
	if msg == nil {
		return NewErrorResponse(nil, ErrorCodeInvalidRequest, "empty message", nil)
	}

	s.logger.Debug("handling message",
		zap.String("method", msg.Method),
		zap.Any("id", msg.ID),
	)

	if msg.IsNotification() {
		s.handleNotification(msg)
		return nil
	}

	result, rpcErr := s.dispatch(ctx, msg.Method, msg.Params)
	if rpcErr != nil {
		return &Message{JSONRPC: "2.0", ID: msg.ID, Error: rpcErr}
	}
	return NewResponse(msg.ID, result)
}

func (s *Server) handleNotification(msg *Message) {
	switch msg.Method {
	case "notifications/initialized":
		s.logger.Info("client initialized")
	default:
		s.logger.Debug("unhandled notification", zap.String("method", msg.Method))
	}
}

func (s *Server) dispatch(ctx context.Context, method string, params map[string]any) (any, *Error) {
	switch method {
	case "initialize":
		return s.handleInitialize(params)
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return map[string]any{"tools": s.ListTools()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	default:
		return nil, &Error{
			Code:    ErrorCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", method),
		}
	}
}

func (s *Server) handleInitialize(_ map[string]any) (any, *Error) {
	return map[string]any{
		"protocolVersion": s.info.ProtocolVersion,
		"capabilities":    s.info.Capabilities,
		"serverInfo": map[string]any{
			"name":    s.info.Name,
			"version": s.info.Version,
		},
	}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params map[string]any) (any, *Error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, &Error{Code: ErrorCodeInvalidParams, Message: "missing required parameter: name"}
	}

	// arguments may be absent for tools without parameters
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return nil, &Error{Code: ErrorCodeInternalError, Message: err.Error()}
	}
	return result, nil
}

// =============================================================================
// Serve — Transport Message Loop
// =============================================================================

// Serve runs the receive/dispatch/send loop over the given transport until
// the context is cancelled or the transport reaches EOF.
func (s *Server) Serve(ctx context.Context, transport Transport) error {
	if transport == nil {
		return fmt.Errorf("transport cannot be nil")
	}

	s.logger.Info("mcp server starting",
		zap.String("name", s.info.Name),
		zap.String("version", s.info.Version),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("mcp server stopping: context cancelled")
			return ctx.Err()
		default:
		}

		msg, err := transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("mcp server stopping: context cancelled")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTransportClosed) {
				s.logger.Info("mcp server stopping: transport closed")
				return nil
			}
			s.logger.Error("transport receive error", zap.Error(err))
			resp := NewErrorResponse(nil, ErrorCodeParseError, "failed to receive message", nil)
			if sendErr := transport.Send(ctx, resp); sendErr != nil {
				s.logger.Error("failed to send error response", zap.Error(sendErr))
			}
			continue
		}

		if msg.JSONRPC != "" && msg.JSONRPC != "2.0" {
			resp := NewErrorResponse(msg.ID, ErrorCodeInvalidRequest, "unsupported JSON-RPC version", nil)
			if sendErr := transport.Send(ctx, resp); sendErr != nil {
				s.logger.Error("failed to send error response", zap.Error(sendErr))
			}
			continue
		}

		resp := s.HandleMessage(ctx, msg)
		if resp == nil {
			continue
		}

		if sendErr := transport.Send(ctx, resp); sendErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("failed to send response", zap.Error(sendErr))
		}
	}
}
