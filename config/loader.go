// =============================================================================
// fetchgate configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("FETCHGATE").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete fetchgate configuration.
type Config struct {
	// Server controls the host-environment channel.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Fetch controls the outbound gateway.
	Fetch FetchConfig `yaml:"fetch" env:"FETCH"`

	// Log controls structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry controls OpenTelemetry tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the channel to the host environment.
type ServerConfig struct {
	// Transport selects the channel: "stdio" or "websocket".
	Transport string `yaml:"transport" env:"TRANSPORT"`
	// WSEndpoint is the host endpoint dialed when Transport is "websocket".
	WSEndpoint string `yaml:"ws_endpoint" env:"WS_ENDPOINT"`
	// ToolTimeout bounds a single tool invocation end to end.
	ToolTimeout time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT"`
	// ShutdownTimeout bounds graceful shutdown (telemetry flush included).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// FetchConfig configures the outbound gateway.
type FetchConfig struct {
	// Timeout is the deadline for one outbound fetch, connection to body.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// UserAgent sent on every outbound request.
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`
	// Accept is the preferred response media type asserted upstream.
	Accept string `yaml:"accept" env:"ACCEPT"`
	// RateLimitRPS caps fetch invocations per second. 0 disables limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// RateLimitBurst is the limiter burst size when RateLimitRPS > 0.
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// Rewrites is the ordered host substitution table applied before
	// dispatch; first match wins. Empty keeps routing caller-driven.
	Rewrites []RewriteRule `yaml:"rewrites" env:"-"`
}

// RewriteRule substitutes the target host when the normalized URL matches.
type RewriteRule struct {
	// Match is a substring matched against the normalized absolute URL.
	Match string `yaml:"match"`
	// Host replaces the URL host when Match hits.
	Host string `yaml:"host"`
}

// LogConfig configures zap logging.
type LogConfig struct {
	// Level: debug, info, warn, error. Debug also logs payload token costs.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths for log output. Keep stdout clear: the stdio transport
	// owns it for protocol frames.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with file:line.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// EnableStacktrace captures stacks at error level.
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads configuration (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader with the FETCHGATE env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FETCHGATE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration with precedence defaults → file → env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file. A missing file is
// not an error; defaults remain in effect.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overlays configuration from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively sets struct fields from env variables named
// after the env tags, joined with underscores under the prefix.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses and assigns a single scalar or string-slice field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration parses as a duration string
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma-separated string slices only
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads configuration, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the loaded configuration for internally consistent values.
func (c *Config) Validate() error {
	var errs []string

	switch c.Server.Transport {
	case "stdio":
	case "websocket":
		if strings.TrimSpace(c.Server.WSEndpoint) == "" {
			errs = append(errs, "ws_endpoint is required for websocket transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported transport %q (supported: stdio, websocket)", c.Server.Transport))
	}

	if c.Server.ToolTimeout <= 0 {
		errs = append(errs, "tool_timeout must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch timeout must be positive")
	}
	if c.Fetch.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}

	for i, rule := range c.Fetch.Rewrites {
		if rule.Match == "" || rule.Host == "" {
			errs = append(errs, fmt.Sprintf("rewrite rule %d: match and host are both required", i))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
