package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/agent"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/api"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/config"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/events"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt/assemblyai"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt/google"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/stt/mock"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/transport/livekitroom"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/version"
)

func main() {
	if err := run(); err != nil {
		logging.Fail(logging.CategoryApp, "service failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "json"})
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info(logging.CategoryApp, "starting voice-to-text agent version=%s provider=%s", version.Version, cfg.Provider)

	sttClient, err := buildSTTClient(cfg)
	if err != nil {
		return fmt.Errorf("build stt client: %w", err)
	}

	transcriptBus := bus.New()
	mirror := events.NewMirror(events.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopicFinal,
		Enabled: cfg.KafkaEnabled,
	})
	defer mirror.Close()

	connector := livekitroom.NewConnector(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.SampleRateHz)
	registry := agent.NewRegistry(connector, sttClient, transcriptBus, mirror, cfg.DrainTimeout)

	server := api.NewServer(registry, transcriptBus, cfg.KeepaliveInterval)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logging.CategoryServer, "listening addr=%s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.PProfAddr != "" {
		go startPProf(cfg.PProfAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logging.Info(logging.CategoryApp, "received signal %v, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop accepting requests first, then drain the agents.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warning(logging.CategoryServer, "http shutdown: %v", err)
	}

	registry.Shutdown(cfg.DrainTimeout)
	logging.Info(logging.CategoryApp, "shutdown complete")
	return nil
}

func buildSTTClient(cfg *config.Config) (stt.Client, error) {
	switch cfg.Provider {
	case "assemblyai":
		return assemblyai.NewClient(cfg.AssemblyAIKey, cfg.SampleRateHz), nil
	case "google":
		return google.NewClient(context.Background(), cfg.SampleRateHz, cfg.LanguageCode)
	case "mock":
		return mock.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func startPProf(addr string) {
	logging.Info(logging.CategoryApp, "starting pprof server addr=%s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logging.Error(logging.CategoryApp, "pprof server error: %v", err)
	}
}
