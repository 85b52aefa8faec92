package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/client"
	"github.com/FahmyAlmaliki/CheeSense/internal/config"
	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

func main() {
	configPath := flag.String("config", "configs/simulator.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadSimulatorConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)

	logger.Info().
		Str("sensor_id", cfg.Sensor.ID).
		Str("target", cfg.Target.RecordURL).
		Dur("interval", cfg.Sensor.Interval).
		Msg("Starting device simulator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	samples := make(chan *models.Sample, 10)

	// Periodic synthetic readings, standing in for the ESP32 firmware
	go func() {
		ticker := time.NewTicker(cfg.Sensor.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample := models.RandomSample(cfg.Sensor.ID, time.Now().UTC())
				logger.Debug().Str("sample", sample.String()).Msg("Generated reading")
				samples <- sample
			}
		}
	}()

	buffer := client.NewSampleBuffer(cfg.Buffer.Size)
	poster := client.NewPoster(cfg.Target, buffer, logger)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("Shutting down simulator...")
		cancel()
	}()

	poster.Run(ctx, samples)
	logger.Info().Msg("Simulator stopped")
}
