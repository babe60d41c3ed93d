package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "deepgram"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"elevenlabs", "openai"},
}

// envOverrides holds values injected from the environment after the YAML
// file is decoded. Credentials belong here, not in the config file.
type envOverrides struct {
	ListenAddr  string `env:"VOXLOOP_LISTEN_ADDR"`
	STTAPIKey   string `env:"VOXLOOP_STT_API_KEY"`
	LLMAPIKey   string `env:"VOXLOOP_LLM_API_KEY"`
	TTSAPIKey   string `env:"VOXLOOP_TTS_API_KEY"`
	PostgresDSN string `env:"VOXLOOP_POSTGRES_DSN"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays non-empty environment values onto cfg.
func applyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	if ov.ListenAddr != "" {
		cfg.Server.ListenAddr = ov.ListenAddr
	}
	if ov.STTAPIKey != "" {
		cfg.Providers.STT.APIKey = ov.STTAPIKey
	}
	if ov.LLMAPIKey != "" {
		cfg.Providers.LLM.APIKey = ov.LLMAPIKey
	}
	if ov.TTSAPIKey != "" {
		cfg.Providers.TTS.APIKey = ov.TTSAPIKey
	}
	if ov.PostgresDSN != "" {
		cfg.CallLog.PostgresDSN = ov.PostgresDSN
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Relay
	if cfg.Relay.FrameThreshold < 0 {
		errs = append(errs, fmt.Errorf("relay.frame_threshold %d must not be negative", cfg.Relay.FrameThreshold))
	}
	if cfg.Relay.HistoryKeep < 0 {
		errs = append(errs, fmt.Errorf("relay.history_keep %d must not be negative", cfg.Relay.HistoryKeep))
	}
	if cfg.Relay.CooldownMs < 0 {
		errs = append(errs, fmt.Errorf("relay.cooldown_ms %d must not be negative", cfg.Relay.CooldownMs))
	}
	if cfg.Relay.StageTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("relay.stage_timeout_ms %d must not be negative", cfg.Relay.StageTimeoutMs))
	}

	// The cascaded pipeline needs all three stages.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.TTSFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", e.Name)
	}

	if cfg.Relay.Voice.VoiceID == "" && cfg.Providers.TTS.Name != "" {
		slog.Warn("relay.voice.voice_id is empty; synthesis will fail unless the provider has a default voice")
	}
	if cfg.Relay.Voice.Provider != "" && cfg.Providers.TTS.Name != "" && cfg.Relay.Voice.Provider != cfg.Providers.TTS.Name {
		slog.Warn("voice provider does not match configured TTS provider",
			"voice_provider", cfg.Relay.Voice.Provider,
			"tts_provider", cfg.Providers.TTS.Name,
		)
	}

	if cfg.CallLog.PostgresDSN == "" {
		slog.Warn("call_log.postgres_dsn is empty; call records are kept in memory and vanish on restart")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
