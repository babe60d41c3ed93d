// Package whispernative provides a batch STT provider backed by the
// whisper.cpp CGO bindings, eliminating HTTP overhead entirely. The
// whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
//
// The model is loaded once at startup and shared across all calls; each
// Transcribe creates its own whisper context because contexts are not safe
// for concurrent use.
package whispernative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/stt"
)

const (
	providerName    = "whisper-native"
	defaultLanguage = "en"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO).
type Provider struct {
	model    whisperlib.Model
	language string
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispernative: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispernative: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. The input must carry 16 kHz mono
// audio; whisper.cpp operates on 16 kHz float samples, so anything else
// would be transcribed at the wrong pitch.
func (p *Provider) Transcribe(ctx context.Context, a audio.Audio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", provider.Classify(providerName, err)
	}
	if a.SampleRate != audio.ProviderRate {
		return "", provider.Errf(providerName, provider.KindMalformed,
			"sample rate %d, want %d", a.SampleRate, audio.ProviderRate)
	}
	pcm, err := a.PCM16()
	if err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "decode input: %w", err)
	}
	samples := audio.PCM16ToFloat32(pcm)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", provider.Errf(providerName, provider.KindUnavailable, "create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "set language %q: %w", p.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", provider.Errf(providerName, provider.KindUnavailable, "process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", provider.Errf(providerName, provider.KindMalformed, "read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
