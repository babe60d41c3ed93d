// Package mock provides a test double for the tts package interface.
//
// Use Provider to script synthesized clips and inspect the text each call
// asked to speak.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice profile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is the audio returned by every Synthesize call. The zero value
	// returns a short μ-law clip so callers do not need to build audio by
	// hand.
	Clip audio.Audio

	// Err, if non-nil, is returned as the error from every Synthesize call.
	Err error

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Clip, Err.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	if p.Err != nil {
		return audio.Audio{}, p.Err
	}
	if p.Clip.Data == nil {
		return audio.Audio{
			Data:       make([]byte, 160),
			Encoding:   audio.EncodingMulaw,
			SampleRate: audio.TransportRate,
		}, nil
	}
	return p.Clip, nil
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// LastText returns the text from the most recent Synthesize call, or ""
// when Synthesize has not been called.
func (p *Provider) LastText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.SynthesizeCalls) == 0 {
		return ""
	}
	return p.SynthesizeCalls[len(p.SynthesizeCalls)-1].Text
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
