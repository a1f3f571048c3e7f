package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companionkit/core"
	ttsevents "companionkit/events/tts"
	"companionkit/factories"
	"companionkit/runner"

	"github.com/joho/godotenv"
)

func main() {
	var settingsPath, characterPath, secretsPath string
	var jsonLogs bool
	flag.StringVar(&settingsPath, "settings", "./settings.json", "path to settings.json")
	flag.StringVar(&characterPath, "character", "./character.json", "path to character.json")
	flag.StringVar(&secretsPath, "secrets", "./secrets.json", "path to secrets.json (optional)")
	flag.BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs instead of console output")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Debug("No .env.local file found")
	}

	settings, err := factories.SettingsConfigFromFile(settingsPath)
	if err != nil {
		core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
		settings = factories.DefaultSettingsConfig()
	}
	if err := settings.ApplySecretsFile(secretsPath); err != nil {
		core.GetLogger().With(map[string]any{"path": secretsPath, "error": err}).Warn("failed to load secrets")
	}

	logger := core.NewDevelopmentLogger()
	if jsonLogs || settings.JSONLogs {
		logger = core.NewJSONLogger()
	}
	core.SetLogger(logger)

	character, err := factories.CharacterConfigFromFile(characterPath)
	if err != nil {
		logger.Warn("failed to load character, using default persona", "path", characterPath, "error", err)
		character = factories.DefaultCharacterConfig()
	}

	// Everything this process talks to must live on this machine. A
	// config pointing elsewhere means the files were tampered with.
	if err := factories.SecurityAudit(settings); err != nil {
		logger.Fatal("refusing to start", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	companion, err := factories.Build(ctx, settings, character, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", "error", err)
	}
	defer companion.Close()

	r := runner.NewRunner(companion.Handlers, logger)
	if err := r.Start(); err != nil {
		logger.Fatal("failed to start pipeline", "error", err)
	}

	go func() {
		for packet := range companion.Transport.Incoming {
			r.Inject(packet)
		}
	}()

	if companion.Loopback != nil {
		go func() {
			if err := companion.Loopback.Start(); err != nil {
				logger.Error("avatar loopback server stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := companion.Transport.Start(); err != nil {
			logger.Error("ui transport stopped", "error", err)
			cancel()
		}
	}()

	// Preload the model so the first reply is not also a cold start.
	if err := companion.Brain.Warmup(ctx); err != nil {
		logger.Warn("model warmup failed", "error", err)
	}

	if character.Greeting != "" {
		// The greeting runs as a scripted turn so the gate, expression
		// and turn lock behave exactly as for a real reply.
		r.Inject(core.NewEventPacket(&ttsevents.TTSSpeakEvent{Text: character.Greeting},
			core.EventRelayDestinationNextService, "main"))
	}

	logger.Info("companion ready", "name", character.Name)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutting down", "signal", sig.String())
	case <-r.Finished:
		logger.Info("pipeline finished")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := companion.Brain.Unload(shutdownCtx); err != nil {
		logger.Debug("model unload failed", "error", err)
	}
	if err := companion.Transport.Shutdown(shutdownCtx); err != nil {
		logger.Debug("transport shutdown failed", "error", err)
	}
	if companion.Loopback != nil {
		companion.Loopback.Shutdown(shutdownCtx)
	}
	if err := r.Stop(); err != nil {
		logger.Debug("pipeline stop failed", "error", err)
	}
}
