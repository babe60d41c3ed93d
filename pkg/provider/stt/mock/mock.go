// Package mock provides a test double for the stt package interface.
//
// Use Provider to script transcripts and inspect the audio each call
// submitted.
//
// Example:
//
//	p := &mock.Provider{Transcript: "hello"}
//	text, _ := p.Transcribe(ctx, utterance)
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider/stt"
)

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the utterance passed to Transcribe.
	Audio audio.Audio
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is the text returned by every Transcribe call when
	// Transcripts is empty.
	Transcript string

	// Transcripts, if non-empty, is consumed one entry per call; after the
	// last entry Transcribe falls back to Transcript.
	Transcripts []string

	// Err, if non-nil, is returned as the error from every Transcribe call.
	Err error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted transcript.
func (p *Provider) Transcribe(ctx context.Context, a audio.Audio) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: a})
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Transcripts) > 0 {
		text := p.Transcripts[0]
		p.Transcripts = p.Transcripts[1:]
		return text, nil
	}
	return p.Transcript, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
