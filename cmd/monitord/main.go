// Package main is the entrypoint for the pumpwatch monitoring daemon.
//
// monitord runs one sequential monitoring loop per device: capture a frame of
// the pump's LED current display, extract its text through the configured OCR
// provider chain, classify the pump state, and let the safety controller
// decide whether a detected rapid-cycle condition may power-cycle the pump.
//
// This file handles dependency wiring only; all behavior lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"pumpwatch/internal/archive"
	"pumpwatch/internal/camera"
	"pumpwatch/internal/config"
	"pumpwatch/internal/db"
	"pumpwatch/internal/extraction"
	"pumpwatch/internal/monitor"
	"pumpwatch/internal/relay"
	"pumpwatch/internal/safety"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).
			Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})).With("device_id", cfg.DeviceID)

	if err := run(cfg, logger); err != nil {
		logger.Error("monitord exited with fault", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("monitord starting", "environment", cfg.Environment)

	// Database pool for the persistence sink.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Broker client shared by the config channel and the OCR bridge.
	broker, err := connectBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Disconnect(250)

	// Runtime snapshot store, seeded with factory defaults. An invalid seed
	// is fatal: the safety guarantees need a trustworthy first snapshot.
	store, err := config.NewSnapshotStore(config.DefaultSnapshot(), logger)
	if err != nil {
		return err
	}
	configSource := config.NewMQTTSource(broker, store, cfg.Broker.ConfigTopic, logger)
	if err := configSource.Subscribe(); err != nil {
		return err
	}

	// Extraction providers. Initialization failures disable a provider but
	// never stop the daemon; the chain falls through to the next one.
	registry := buildProviders(ctx, cfg, broker, logger)
	orchestrator := extraction.NewOrchestrator(registry, extraction.NewStatsRegistry(), logger)

	// Hardware and persistence collaborators.
	cam := camera.NewCLISource(cfg.Camera, logger)
	actuator := relay.NewGPIOActuator(cfg.Relay, logger)
	sink := db.NewAsyncSink(db.NewReadingRepository(pool, cfg.DeviceID), 64, logger)
	defer sink.Close()

	var archiver monitor.FrameArchiver
	if cfg.Archive.Enabled {
		fa, err := archive.New(cfg.Archive.Dir, cfg.Archive.MaxFiles, logger)
		if err != nil {
			logger.Warn("frame archive disabled", "error", err)
		} else {
			archiver = fa
		}
	}

	loop := monitor.NewLoop(monitor.LoopConfig{
		Camera:       cam,
		Orchestrator: orchestrator,
		Controller:   safety.NewController(actuator, logger),
		Sink:         sink,
		Snapshots:    store,
		Archiver:     archiver,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})

	err = g.Wait()

	// Shutdown summary: per-provider stats for the fleet dashboard scraper.
	for _, ps := range orchestrator.Stats().Snapshot() {
		logger.Info("provider statistics",
			"provider", ps.Provider,
			"attempts", ps.Attempts,
			"successes", ps.Successes,
			"mean_confidence", ps.MeanConfidence,
			"mean_duration", ps.MeanDuration.String(),
		)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("monitord stopped")
	return nil
}

// buildProviders constructs and initializes the full provider set. The
// snapshot's priority list decides which of them actually run each cycle.
func buildProviders(ctx context.Context, cfg *config.Config, broker mqtt.Client, logger *slog.Logger) extraction.Registry {
	providers := []extraction.Provider{
		extraction.NewTesseractProvider(extraction.TesseractProviderConfig{
			Binary: cfg.OCR.TesseractBinary,
			Logger: logger,
		}),
		extraction.NewCloudProvider(&http.Client{Timeout: 10 * time.Second}, extraction.CloudProviderConfig{
			Endpoint: cfg.OCR.CloudEndpoint,
			APIKey:   cfg.OCR.CloudAPIKey,
			Logger:   logger,
		}),
		extraction.NewBridgeProvider(broker, extraction.BridgeProviderConfig{
			RequestTopic: cfg.Broker.BridgeRequestTopic,
			ReplyTopic:   cfg.Broker.BridgeReplyTopic,
			Logger:       logger,
		}),
	}

	for _, p := range providers {
		if err := p.Initialize(ctx); err != nil {
			logger.Warn("provider initialization failed; provider disabled",
				"provider", p.Name(),
				"error", err,
			)
		}
	}
	return extraction.NewRegistry(providers...)
}

// connectBroker builds the shared MQTT client with auto-reconnect.
func connectBroker(cfg *config.Config, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker.URL).
		SetClientID("pumpwatch-" + cfg.DeviceID).
		SetUsername(cfg.Broker.Username).
		SetPassword(cfg.Broker.Password).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("broker connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info("broker connected", "url", cfg.Broker.URL)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
