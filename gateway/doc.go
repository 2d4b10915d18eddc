// Package gateway implements the content-negotiation and routing gateway:
// it normalizes a caller-supplied URL into an outbound request that prefers
// an agent-digestible text format, dispatches the fetch, and classifies the
// upstream response into the three-variant GatewayResult envelope.
//
// The gateway holds no state between invocations: no caching, no session
// continuity, no retry memory. Every failure path is captured and converted
// into a Failed result before it can reach the host environment.
package gateway
