// Package types contains the shared result and error model of fetchgate:
// the three-variant GatewayResult envelope, structured error codes, and the
// content blocks handed back to the host environment.
package types
