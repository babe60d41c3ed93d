// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// single-request synthesis REST API. It implements the tts.Provider
// interface.
//
// The provider requests μ-law 8 kHz output directly, so clips go to the
// telephony transport without any transcoding.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

const (
	providerName     = "elevenlabs"
	synthEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=%s"
	voicesEndpoint   = "https://api.elevenlabs.io/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "ulaw_8000"
	defaultTimeout   = 30 * time.Second
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// synthRequest is the JSON payload for POST /v1/text-to-speech/{voice_id}.
type synthRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// Synthesize implements tts.Provider. The response body is raw μ-law at
// 8 kHz because the request pins output_format=ulaw_8000.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Audio, error) {
	if voice.ID == "" {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "voice.ID must not be empty")
	}
	if text == "" {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "text must not be empty")
	}

	payload, err := json.Marshal(synthRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.synthURL(voice.ID), bytes.NewReader(payload))
	if err != nil {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Audio{}, provider.Classify(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Audio{}, provider.Errf(providerName, provider.KindStatus, "synthesis returned HTTP %d", resp.StatusCode)
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Audio{}, provider.Classify(providerName, err)
	}
	if len(clip) == 0 {
		return audio.Audio{}, provider.Errf(providerName, provider.KindMalformed, "synthesis returned no audio")
	}

	return audio.Audio{
		Data:       clip,
		Encoding:   audio.EncodingMulaw,
		SampleRate: audio.TransportRate,
	}, nil
}

// synthURL constructs the synthesis endpoint URL for a voice.
func (p *Provider) synthURL(voiceID string) string {
	if p.baseURL != "" {
		return fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, voiceID, defaultOutputFmt)
	}
	return fmt.Sprintf(synthEndpointFmt, voiceID, defaultOutputFmt)
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// ListVoices returns all voices available for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	endpoint := voicesEndpoint
	if p.baseURL != "" {
		endpoint = p.baseURL + "/v1/voices"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, provider.Errf(providerName, provider.KindMalformed, "create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, provider.Classify(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.Errf(providerName, provider.KindStatus, "list voices returned HTTP %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, provider.Errf(providerName, provider.KindMalformed, "decode voices: %w", err)
	}

	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: providerName,
		})
	}
	return profiles, nil
}
