// Command voiceorchestrator wires configuration, the tool registry, and the
// Session Coordinator together and runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mathisarends/voiceorchestrator/internal/audio"
	"github.com/mathisarends/voiceorchestrator/internal/config"
	"github.com/mathisarends/voiceorchestrator/internal/coordinator"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/sessioncache"
	"github.com/mathisarends/voiceorchestrator/internal/tools"
	"github.com/mathisarends/voiceorchestrator/internal/tools/examples"
	"github.com/mathisarends/voiceorchestrator/internal/wakeword"
)

func main() {
	cfg, err := config.Load(os.Getenv("VOICEORCHESTRATOR_CONFIG"))
	if err != nil {
		obslog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	registry := buildRegistry()

	mic := audio.NewFanout(os.Stdin)
	micCtx, stopMic := context.WithCancel(context.Background())
	defer stopMic()
	go mic.Run(micCtx)

	detector := wakeword.NewEnergyDetector(mic.Tap(), defaultWakeEnergyThreshold)

	co := coordinator.New(coordinator.Deps{
		Config:       cfg,
		Detector:     detector,
		Mic:          mic.Tap(),
		SessionCache: buildSessionCache(),
	}, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := co.Run(ctx); err != nil {
		obslog.Error("coordinator exited with error", "error", err)
		os.Exit(1)
	}
}

// defaultWakeEnergyThreshold is a placeholder tuned for silence-vs-speech on
// a typical PCM16 stream; a real deployment replaces EnergyDetector with the
// native wake-word engine entirely and this constant goes with it.
const defaultWakeEnergyThreshold = 800

func buildRegistry() *tools.Registry {
	registry := tools.New()
	for _, d := range []tools.Descriptor{examples.Weather, examples.VolumeAdjustment, examples.BrowserSearch, examples.SetSpeechSpeed} {
		if err := registry.Register(d); err != nil {
			obslog.Error("startup: failed to register tool", "tool", d.Name, "error", err)
			os.Exit(1)
		}
	}

	if manifestPath := os.Getenv("HTTP_TOOLS_MANIFEST"); manifestPath != "" {
		httpCfg, err := tools.LoadHTTPToolConfig(manifestPath)
		if err != nil {
			obslog.Error("startup: failed to load HTTP tool manifest", "path", manifestPath, "error", err)
			os.Exit(1)
		}
		if err := registry.Register(httpCfg.Descriptor()); err != nil {
			obslog.Error("startup: failed to register HTTP tool", "error", err)
			os.Exit(1)
		}
	}

	return registry
}

// buildSessionCache returns a Redis-backed Cache when SESSION_CACHE_REDIS_ADDR
// is set, else nil (cross-reconnect settings rehydration disabled).
func buildSessionCache() *sessioncache.Cache {
	addr := os.Getenv("SESSION_CACHE_REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return sessioncache.New(client)
}
