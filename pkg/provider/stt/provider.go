// Package stt defines the Provider interface for batch Speech-to-Text
// backends.
//
// Unlike streaming transcription services, the relay segments caller audio
// itself (fixed-length utterance windows) and submits each utterance as a
// single request/response call. An empty transcript with a nil error is a
// valid result: the provider heard nothing worth keeping, and the turn
// controller skips the turn.
//
// Implementations must be safe for concurrent use; one process serves many
// calls at once.
package stt

import (
	"context"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe converts one utterance of audio to text. The input carries
	// its own encoding and sample rate; implementations either consume it
	// directly (Deepgram accepts raw μ-law) or require a specific container
	// and return an error for anything else.
	//
	// Returns ("", nil) for valid but contentless speech. Failures are
	// wrapped as [provider.Error] values so callers can log the failure kind.
	Transcribe(ctx context.Context, a audio.Audio) (string, error)
}
