// Package tools binds gateway operations to MCP tool definitions.
package tools

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fetchgate/gateway"
	"github.com/BaSui01/fetchgate/mcp"
	"github.com/BaSui01/fetchgate/types"
)

// FetchToolName is the name the fetch tool is registered and invoked under.
const FetchToolName = "fetch"

// fetchDescription steers callers toward mirror hosts that serve markdown
// where the canonical site would answer with HTML. Routing is caller-trust:
// the description is guidance, the gateway fetches whatever URL it is given.
const fetchDescription = `Fetch a URL and return its content as markdown.

Prefer mirrors that serve markdown directly:
- GitHub repos: use uithub.com instead of github.com (same path)
- X/Twitter posts: use fxtwitter.com instead of x.com or twitter.com
- For REST API documentation, fetch the raw OpenAPI spec URL when one exists

URLs without a scheme are fetched over HTTPS. HTML responses are rejected;
pick a markdown-friendly mirror or source URL instead.`

// NewFetchTool returns the fetch tool definition and its handler bound to
// the given gateway.
func NewFetchTool(gw *gateway.Gateway, logger *zap.Logger) (*mcp.ToolDefinition, mcp.ToolHandler) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("tool", FetchToolName))

	def := &mcp.ToolDefinition{
		Name:        FetchToolName,
		Description: fetchDescription,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch. The https:// scheme is assumed when omitted.",
				},
			},
			"required": []string{"url"},
		},
	}

	handler := func(ctx context.Context, args map[string]any) (*mcp.ToolResult, error) {
		rawURL, _ := args["url"].(string)
		if strings.TrimSpace(rawURL) == "" {
			log.Debug("rejecting call with missing url argument")
			res := types.FailedResult(types.ErrInvalidArguments, "missing required argument: url", nil)
			return &mcp.ToolResult{Content: res.ContentBlocks(), IsError: true}, nil
		}

		res := gw.Fetch(ctx, rawURL)
		return &mcp.ToolResult{Content: res.ContentBlocks(), IsError: res.IsError()}, nil
	}

	return def, handler
}

// Register builds the fetch tool and registers it on the given server.
func Register(server *mcp.Server, gw *gateway.Gateway, logger *zap.Logger) error {
	def, handler := NewFetchTool(gw, logger)
	return server.RegisterTool(def, handler)
}
