package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/benjaa-a11/Proxy-Pivo/internal/config"
	"github.com/benjaa-a11/Proxy-Pivo/internal/fetch"
	"github.com/benjaa-a11/Proxy-Pivo/internal/registry"
	"github.com/benjaa-a11/Proxy-Pivo/internal/server"
	"github.com/benjaa-a11/Proxy-Pivo/internal/telemetry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults for development")
		cfg = config.LoadWithDefaults()
	}

	log.Info().
		Str("port", cfg.Port).
		Str("registry_backend", string(cfg.RegistryBackend)).
		Msg("Starting HLS proxy server")

	fetch.Configure(time.Duration(cfg.FetchTimeoutSeconds)*time.Second, cfg.FetchMaxAttempts)

	tracerProvider, err := telemetry.NewProvider(context.Background(), "hls-proxy")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, closeRegistry, err := buildRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize channel registry")
	}
	defer closeRegistry()

	handler := server.New(reg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // media bodies can stream for a long time
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// buildRegistry wires the registry backend selected by cfg, wrapping any
// of them in a short-TTL lookup cache. The returned close func releases
// any backend-held resources (connections, watchers).
func buildRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, func(), error) {
	var base registry.Registry
	var closeFn func()

	switch cfg.RegistryBackend {
	case config.RegistryMemory:
		base = registry.NewMemory(registry.Channel{
			ID:     "demo",
			Name:   "Demo channel",
			Source: "https://cdn.example.com/live/master.m3u8",
		})
		closeFn = func() {}

	case config.RegistryFile:
		fileReg, err := registry.NewFile(cfg.ChannelsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("building file registry: %w", err)
		}
		base = fileReg
		closeFn = func() { fileReg.Close() }

	case config.RegistryRedis:
		redisReg, err := registry.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("building redis registry: %w", err)
		}
		base = redisReg
		closeFn = func() { redisReg.Close() }

	case config.RegistryPostgres:
		pgReg, err := registry.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("building postgres registry: %w", err)
		}
		if err := pgReg.Migrate(ctx); err != nil {
			pgReg.Close()
			return nil, nil, fmt.Errorf("migrating channels table: %w", err)
		}
		base = pgReg
		closeFn = func() { pgReg.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}

	if cfg.RegistryCacheTTL <= 0 {
		return base, closeFn, nil
	}

	cached := registry.NewCached(base, time.Duration(cfg.RegistryCacheTTL)*time.Second)
	return cached, func() {
		cached.Close()
		closeFn()
	}, nil
}
