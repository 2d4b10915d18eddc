// Package mcp implements a minimal Model Context Protocol server: JSON-RPC
// 2.0 message types, a tool registry with timeout and panic containment, and
// pluggable transports (stdio with Content-Length framing, WebSocket).
//
// The server exposes tools only. Resources, prompts, and sampling are not
// part of the surface; clients that probe for them get a method-not-found
// error as the protocol prescribes.
package mcp
