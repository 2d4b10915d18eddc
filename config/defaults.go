// =============================================================================
// fetchgate default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Fetch:     DefaultFetchConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default host-channel configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport:       "stdio",
		ToolTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultFetchConfig returns the default gateway configuration.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:   30 * time.Second,
		UserAgent: "fetchgate/" + Version,
		Accept:    "text/markdown",
		// Routing stays caller-driven unless rules are configured.
		Rewrites: nil,
	}
}

// DefaultLogConfig returns the default logging configuration.
// Output goes to stderr: stdout belongs to the stdio transport.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    "localhost:9091",
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fetchgate",
		SampleRate:   1.0,
	}
}

// Version is the semantic version reported to the host environment and
// stamped into the default user agent.
const Version = "0.1.0"
