// Package openai provides a TTS provider backed by the OpenAI speech API.
//
// The speech endpoint returns 24 kHz PCM when asked for the pcm response
// format; the codec layer downsamples that to transport μ-law.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

const (
	providerName = "openai-speech"

	// The speech API emits 24 kHz mono PCM16 for ResponseFormat "pcm".
	speechPCMRate = 24000
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	model   string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithModel sets the speech model (e.g., "tts-1", "tts-1-hd"). Defaults to
// "tts-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  oai.SpeechModel
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: string(oai.SpeechModelTTS1)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  oai.SpeechModel(cfg.model),
	}, nil
}

// Synthesize implements tts.Provider. voice.ID must name an OpenAI voice
// ("alloy", "echo", "fable", "onyx", "nova", "shimmer").
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Audio, error) {
	if voice.ID == "" {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "voice.ID must not be empty")
	}
	if text == "" {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "text must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return audio.Audio{}, provider.Classify(providerName, err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Audio{}, provider.Classify(providerName, err)
	}
	if len(pcm) == 0 {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "synthesis returned no audio")
	}

	return audio.Audio{
		Data:       pcm,
		Encoding:   audio.EncodingPCM16,
		SampleRate: speechPCMRate,
	}, nil
}
