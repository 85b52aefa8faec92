package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/config"
	"github.com/FahmyAlmaliki/CheeSense/internal/server"
	"github.com/FahmyAlmaliki/CheeSense/internal/storage"
)

const version = "v1.0.0"

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("base_path", cfg.Server.BasePath).
		Msg("Starting CheeSense server")

	fallback := server.NewFallbackStore(cfg.Storage.BufferSize)

	var influx *storage.InfluxStore
	var series server.SeriesStore
	if cfg.Influx.Configured() {
		influx = storage.NewInfluxStore(cfg.Influx, logger)
		series = influx
	} else {
		logger.Warn().Msg("InfluxDB token not configured, serving from memory only")
	}

	svc := server.NewService(fallback, series, logger)
	svc.SetDemoBounds(cfg.Demo.DefaultCount, cfg.Demo.MaxCount)

	var archive *storage.Archive
	var archiver *storage.Archiver
	var retentionCleaner *storage.RetentionCleaner
	if cfg.Archive.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Archive.Path), 0755); err != nil {
			log.Fatalf("Failed to create archive directory: %v", err)
		}
		archive, err = storage.NewArchive(cfg.Archive.Path, logger)
		if err != nil {
			log.Fatalf("Failed to open sample archive: %v", err)
		}

		archiver = storage.NewArchiver(archive, storage.ArchiverConfig{
			BatchSize:   cfg.Archive.BatchSize,
			FlushPeriod: cfg.Archive.FlushPeriod,
			ChannelSize: cfg.Archive.ChannelSize,
		}, logger)
		svc.SetArchiver(archiver)

		retentionCleaner = storage.NewRetentionCleaner(archive, storage.RetentionCleanerConfig{
			RetentionDays: cfg.Archive.RetentionDays,
			CleanupPeriod: cfg.Archive.CleanupPeriod,
		}, logger)
	}

	hub := server.NewLiveHub(logger, cfg.Server.AllowedOrigins...)

	apiHandler := server.NewAPIHandler(svc, cfg.Server.APIKey, logger)
	apiHandler.SetLiveHub(hub)

	mux := http.NewServeMux()
	apiHandler.Routes(mux, cfg.Server.BasePath)
	mux.Handle("/live", hub)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.RequestLogger(logger, server.AllowCORS(mux)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	if archiver != nil {
		archiver.Stop()
	}
	if retentionCleaner != nil {
		retentionCleaner.Stop()
	}
	if archive != nil {
		archive.Close()
		logger.Info().Msg("Sample archive closed")
	}
	if influx != nil {
		influx.Close()
		logger.Info().Msg("InfluxDB client closed")
	}

	logger.Info().Msg("Server stopped")
}

// newLogger builds the process logger from config
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}
