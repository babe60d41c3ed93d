// Package whisper provides a batch STT provider backed by a whisper.cpp
// server (the whisper-server binary, which exposes POST /inference).
//
// The relay's segmenter produces fixed-length utterances, so no streaming or
// silence detection is needed here: each utterance is wrapped in a WAV
// container by the codec layer and submitted as one multipart request.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	text, err := p.Transcribe(ctx, wavAudio)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/stt"
)

const (
	providerName    = "whisper"
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server (e.g.,
// "base.en"). When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code sent to the server. Defaults to
// "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements stt.Provider against a whisper.cpp HTTP server.
// It is stateless apart from its HTTP client and safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. The input must be WAV-encoded
// (whisper-server parses the RIFF header for the sample rate).
func (p *Provider) Transcribe(ctx context.Context, a audio.Audio) (string, error) {
	if a.Encoding != audio.EncodingWAV {
		return "", provider.Errf(providerName, provider.KindMalformed,
			"input encoding %q, want %q", a.Encoding, audio.EncodingWAV)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "create form file: %w", err)
	}
	if _, err := fw.Write(a.Data); err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "write wav data: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", provider.Errf(providerName, provider.KindMalformed, "write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", provider.Errf(providerName, provider.KindMalformed, "write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", provider.Classify(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", provider.Errf(providerName, provider.KindStatus, "server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", provider.Classify(providerName, err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", provider.Errf(providerName, provider.KindMalformed, "parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}
