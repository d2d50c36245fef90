package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/dragonhub/internal/config"
	"github.com/rickgao/dragonhub/internal/metrics"
	"github.com/rickgao/dragonhub/internal/pubsub"
	"github.com/rickgao/dragonhub/internal/router"
	"github.com/rickgao/dragonhub/internal/routes"
	"github.com/rickgao/dragonhub/internal/transport"
	"github.com/rickgao/dragonhub/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting dragonhub",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("dragonhub failed", "error", err)
		os.Exit(1)
	}

	logger.Info("dragonhub stopped")
}

func loadConfig(path string) (*config.ServerConfig, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	routeRegistry := router.NewRegistry(logger)
	if err := routes.Register(routeRegistry); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}
	hub := pubsub.NewRegistry(logger)

	wsServer := transport.NewServer(transportConfig(cfg), routeRegistry, hub, logger)

	reporter := metrics.New(metrics.Config{Interval: cfg.Log.StatsInterval}, logger)
	reporter.Add("transport", metrics.SourceFunc(func() any { return wsServer.Stats() }))
	reporter.Add("pubsub", metrics.SourceFunc(func() any { return hub.Stats() }))
	reporter.Add("router", metrics.SourceFunc(func() any { return routeRegistry.Stats() }))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WSPath, wsServer)
	mux.Handle(cfg.Server.HealthPath, healthHandler(cfg.Instance.ID, reporter))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := reporter.Start(gctx); err != nil {
		return fmt.Errorf("start stats reporter: %w", err)
	}

	g.Go(func() error {
		logger.Info("listening",
			"addr", cfg.Server.Addr,
			"ws_path", cfg.Server.WSPath,
			"health_path", cfg.Server.HealthPath,
			"routes", routeRegistry.Routes(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by http.Server.
		wsErr := wsServer.Shutdown(shutdownCtx)
		httpErr := httpServer.Shutdown(shutdownCtx)
		statsErr := reporter.Stop(shutdownCtx)
		return errors.Join(wsErr, httpErr, statsErr)
	})

	return g.Wait()
}

func transportConfig(cfg *config.ServerConfig) transport.Config {
	ws := cfg.WebSocket
	return transport.Config{
		Path:              cfg.Server.WSPath,
		ReadLimit:         ws.ReadLimit,
		WriteTimeout:      ws.WriteTimeout,
		PingInterval:      ws.PingInterval,
		PongTimeout:       ws.PongTimeout,
		SendBuffer:        ws.SendBuffer,
		ReadBufferSize:    ws.ReadBufferSize,
		WriteBufferSize:   ws.WriteBufferSize,
		AllowedOrigins:    ws.AllowedOrigins,
		EnableCompression: ws.EnableCompression,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// healthHandler reports build info and component statistics.
func healthHandler(instanceID string, reporter *metrics.Reporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status   string         `json:"status"`
			Instance string         `json:"instance"`
			Build    version.Info   `json:"build"`
			Stats    map[string]any `json:"stats"`
		}{
			Status:   "healthy",
			Instance: instanceID,
			Build:    version.Get(),
			Stats:    reporter.Collect(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})
}
