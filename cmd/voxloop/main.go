// Command voxloop runs the Voxloop voice relay server. It terminates
// telephony media streams over WebSocket, drives the per-call turn
// controller, and cascades caller audio through the configured
// speech-to-text, language model, and text-to-speech providers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/voxloop/voxloop/internal/calllog"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/relay"
	"github.com/voxloop/voxloop/internal/resilience"
	"github.com/voxloop/voxloop/internal/server"
	"github.com/voxloop/voxloop/pkg/provider/llm"
	"github.com/voxloop/voxloop/pkg/provider/llm/anyllm"
	llmopenai "github.com/voxloop/voxloop/pkg/provider/llm/openai"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/stt/deepgram"
	"github.com/voxloop/voxloop/pkg/provider/stt/whisper"
	"github.com/voxloop/voxloop/pkg/provider/stt/whispernative"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/voxloop/voxloop/pkg/provider/tts/openai"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

const (
	defaultListenAddr      = ":8080"
	shutdownGrace          = 15 * time.Second
	telemetryShutdownGrace = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voxloop", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config file %q not found; pass -config or create one\n", *configPath)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("initialize telemetry", "error", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttChain, llmChain, ttsChain, err := buildProviders(reg, cfg)
	if err != nil {
		logger.Error("build providers", "error", err)
		return 1
	}

	store, closeStore, err := buildCallLog(ctx, cfg, logger)
	if err != nil {
		logger.Error("build call log store", "error", err)
		return 1
	}
	defer closeStore()

	controller := relay.NewController(relay.Config{
		Greeting:       cfg.Relay.Greeting,
		Preamble:       cfg.Relay.SystemPreamble,
		FrameThreshold: cfg.Relay.FrameThreshold,
		HistoryKeep:    cfg.Relay.HistoryKeep,
		Cooldown:       cfg.Relay.Cooldown(),
		StageTimeout:   cfg.Relay.StageTimeout(),
		Voice: tts.VoiceProfile{
			ID:       cfg.Relay.Voice.VoiceID,
			Name:     cfg.Relay.Voice.Name,
			Provider: cfg.Relay.Voice.Provider,
		},
	},
		sttChain, llmChain, ttsChain,
		relay.WithLogger(logger),
		relay.WithCallLog(store),
	)

	srv := server.New(server.Config{
		PublicHost:       cfg.Server.PublicHost,
		AllowedCallers:   cfg.Auth.AllowedCallers,
		RejectionMessage: cfg.Auth.RejectionMessage,
	}, controller, server.WithLogger(logger))

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	var certFile, keyFile string
	if cfg.Server.TLS != nil {
		certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	}

	logger.Info("voxloop starting",
		"version", version,
		"addr", addr,
		"tls", certFile != "",
		"stt", cfg.Providers.STT.Name,
		"llm", cfg.Providers.LLM.Name,
		"tts", cfg.Providers.TTS.Name,
		"call_log", storeKind(cfg),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(addr, certFile, keyFile)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}
	logger.Info("voxloop stopped")
	return 0
}

// newLogger builds a text slog logger honouring the configured level.
// An empty or invalid level falls back to info.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// registerBuiltinProviders wires every bundled provider implementation into
// the registry. Third-party binaries embedding Voxloop can register their own
// factories alongside or instead of these.
func registerBuiltinProviders(reg *config.Registry) {
	// Speech to text.
	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(e.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(e.BaseURL, opts...)
	})
	reg.RegisterSTT("whisper-native", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whispernative.Option
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, whispernative.WithLanguage(lang))
		}
		return whispernative.New(e.Model, opts...)
	})

	// Language models. "openai" uses the official SDK; the remaining hosted
	// backends go through any-llm-go, and "ollama" talks to a local daemon.
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(e.BaseURL))
		}
		return llmopenai.New(e.APIKey, e.Model, opts...)
	})
	for _, backend := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(backend, func(e config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(backend, e.Model, opts...)
		})
	}
	reg.RegisterLLM("ollama", func(e config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if e.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
		}
		return anyllm.NewOllama(e.Model, opts...)
	})

	// Text to speech.
	reg.RegisterTTS("elevenlabs", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})
	reg.RegisterTTS("openai", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if e.Model != "" {
			opts = append(opts, ttsopenai.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(e.BaseURL))
		}
		return ttsopenai.New(e.APIKey, opts...)
	})
}

// buildProviders instantiates the configured primary provider for each
// pipeline stage plus any fallbacks, wrapped in circuit-breaker failover
// groups.
func buildProviders(reg *config.Registry, cfg *config.Config) (stt.Provider, llm.Provider, tts.Provider, error) {
	fbCfg := resilience.FallbackConfig{}

	sttPrimary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stt provider: %w", err)
	}
	sttChain := resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Name, fbCfg)
	for _, e := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(e)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("stt fallback %q: %w", e.Name, err)
		}
		sttChain.AddFallback(e.Name, p)
	}

	llmPrimary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("llm provider: %w", err)
	}
	llmChain := resilience.NewLLMFallback(llmPrimary, cfg.Providers.LLM.Name, fbCfg)
	for _, e := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(e)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("llm fallback %q: %w", e.Name, err)
		}
		llmChain.AddFallback(e.Name, p)
	}

	ttsPrimary, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tts provider: %w", err)
	}
	ttsChain := resilience.NewTTSFallback(ttsPrimary, cfg.Providers.TTS.Name, fbCfg)
	for _, e := range cfg.Providers.TTSFallbacks {
		p, err := reg.CreateTTS(e)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("tts fallback %q: %w", e.Name, err)
		}
		ttsChain.AddFallback(e.Name, p)
	}

	return sttChain, llmChain, ttsChain, nil
}

// buildCallLog returns the call detail record store: PostgreSQL when a DSN is
// configured, an in-memory store otherwise. The returned close function
// releases the connection pool if one was opened.
func buildCallLog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (calllog.Store, func(), error) {
	dsn := cfg.CallLog.PostgresDSN
	if dsn == "" {
		return calllog.NewMemStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := calllog.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate call log schema: %w", err)
	}
	logger.Info("call log backed by postgres")
	return store, pool.Close, nil
}

func storeKind(cfg *config.Config) string {
	if cfg.CallLog.PostgresDSN != "" {
		return "postgres"
	}
	return "memory"
}
