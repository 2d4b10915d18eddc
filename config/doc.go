// Package config loads and validates fetchgate configuration from defaults,
// an optional YAML file, and FETCHGATE_-prefixed environment variables, in
// that order of precedence.
package config
