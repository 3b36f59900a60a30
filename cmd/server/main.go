package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BenWeekes/ai-therapist/internal/config"
	"github.com/BenWeekes/ai-therapist/internal/metrics"
	"github.com/BenWeekes/ai-therapist/internal/server"
	"github.com/BenWeekes/ai-therapist/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "ai-therapist"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("reassembly_timeout_ms", cfg.Reassembly.TimeoutMS),
		slog.Int("max_pending", cfg.Reassembly.MaxPending),
		slog.Int("voice_window_size", cfg.Voice.WindowSize),
		slog.Int("bar_count", cfg.Visualizer.BarCount),
		slog.Int("max_sessions", cfg.Session.MaxSessions),
		slog.Bool("webhook_enabled", cfg.Webhook.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()

	sessionMgr, err := session.NewManager(logger, appMetrics, cfg)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session manager initialized",
		slog.Duration("idle_timeout", cfg.Session.GetIdleTimeout()),
		slog.Int("max_sessions", cfg.Session.MaxSessions),
	)

	// The HTTP server also carries the WebSocket transport endpoint.
	httpServer := server.NewHTTPServer(logger, cfg, sessionMgr, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service started",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	// Stop accepting connections before tearing sessions down, so no new
	// session appears after the manager has stopped.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}
	sessionMgr.Stop()

	logger.Info("Service stopped")
}

// loadConfig reads the configured file. A missing file at the default path
// falls back to built-in defaults so the service runs out of the box; an
// explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && path == defaultConfigPath {
		return config.Default(), nil
	}
	return config.Load(path)
}

// initLogger builds the structured logger from the logging section.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	level, ok := levels[cfg.Level]
	if !ok {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}
