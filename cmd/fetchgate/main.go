// =============================================================================
// fetchgate entry point
// =============================================================================
// MCP server exposing the fetch tool over stdio or WebSocket, with optional
// Prometheus metrics and OpenTelemetry tracing.
//
// Usage:
//
//	fetchgate serve                       # serve over stdio
//	fetchgate serve --config config.yaml  # with a config file
//	fetchgate version                     # show version information
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/fetchgate/config"
	"github.com/BaSui01/fetchgate/gateway"
	"github.com/BaSui01/fetchgate/internal/metrics"
	"github.com/BaSui01/fetchgate/internal/telemetry"
	"github.com/BaSui01/fetchgate/mcp"
	"github.com/BaSui01/fetchgate/tools"
)

// =============================================================================
// Version information (injected at build time)
// =============================================================================

var (
	Version   = config.Version
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// Main
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// serve command
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting fetchgate",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("transport", cfg.Server.Transport),
	)

	otelProvider, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector("fetchgate", logger)
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics listener starting", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	gw := gateway.New(cfg.Fetch, logger, gateway.Options{Collector: collector})

	server := mcp.NewServer("fetchgate", Version, cfg.Server.ToolTimeout, logger)
	def, handler := tools.NewFetchTool(gw, logger)
	if err := server.RegisterTool(def, observedHandler(collector, def.Name, handler)); err != nil {
		logger.Fatal("failed to register fetch tool", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := buildTransport(ctx, cfg.Server, logger)
	if err != nil {
		logger.Fatal("failed to set up transport", zap.Error(err))
	}
	defer transport.Close()

	serveErr := server.Serve(ctx, transport)
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("serve loop exited", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics listener shutdown failed", zap.Error(err))
		}
	}
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}

	logger.Info("fetchgate stopped")
}

// buildTransport selects and connects the protocol channel. The stdio
// transport takes over stdout, which is why all logging goes to stderr.
func buildTransport(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (mcp.Transport, error) {
	switch cfg.Transport {
	case "stdio":
		return mcp.NewStdioTransport(os.Stdin, os.Stdout), nil
	case "websocket":
		tr := mcp.NewWebSocketTransport(cfg.WSEndpoint, mcp.DefaultWSConfig(), logger)
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := tr.Connect(dialCtx); err != nil {
			return nil, err
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// observedHandler records per-call metrics around a tool handler.
func observedHandler(collector *metrics.Collector, name string, handler mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, args map[string]any) (*mcp.ToolResult, error) {
		result, err := handler(ctx, args)
		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		collector.ObserveToolCall(name, status)
		return result, err
	}
}

// =============================================================================
// version and help
// =============================================================================

func printVersion() {
	fmt.Printf("fetchgate %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`fetchgate - MCP fetch gateway

Usage:
  fetchgate <command> [options]

Commands:
  serve     Start the MCP server
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  fetchgate serve
  fetchgate serve --config /etc/fetchgate/config.yaml
  fetchgate version`)
}

// =============================================================================
// Logger initialization
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		// Never default to stdout: the stdio transport owns it.
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if zapConfig.Encoding != "console" {
		zapConfig.Encoding = "json"
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
