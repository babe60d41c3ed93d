// Package deepgram provides a Deepgram-backed batch STT provider using the
// prerecorded REST API. Deepgram transcribes raw G.711 μ-law directly, so
// utterances from the telephony transport need no transcoding at all before
// submission.
package deepgram

import (
	"bytes"
	"context"
	"errors"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/stt"
)

const (
	providerName    = "deepgram"
	defaultModel    = "nova-2"
	defaultLanguage = "en"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en",
// "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	rest     *api.Client
	model    string
	language string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		rest:     api.New(client.NewREST(apiKey, &interfaces.ClientOptions{})),
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. μ-law and raw PCM inputs are submitted
// with explicit encoding parameters; WAV input lets Deepgram read the
// container header instead.
func (p *Provider) Transcribe(ctx context.Context, a audio.Audio) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       p.model,
		Language:    p.language,
		SmartFormat: true,
	}
	switch a.Encoding {
	case audio.EncodingMulaw:
		options.Encoding = "mulaw"
		options.SampleRate = a.SampleRate
	case audio.EncodingPCM16:
		options.Encoding = "linear16"
		options.SampleRate = a.SampleRate
	case audio.EncodingWAV:
		// Container header carries the format.
	default:
		return "", provider.Errf(providerName, provider.KindMalformed,
			"unsupported input encoding %q", a.Encoding)
	}

	res, err := p.rest.FromStream(ctx, bytes.NewReader(a.Data), options)
	if err != nil {
		return "", provider.Classify(providerName, err)
	}
	if res == nil || res.Results == nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "response carries no results")
	}
	if len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return res.Results.Channels[0].Alternatives[0].Transcript, nil
}
