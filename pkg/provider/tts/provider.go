// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or the
// OpenAI speech API) and converts one assistant reply into one audio clip.
// Replies on a phone line are a sentence or two, so batch synthesis keeps the
// pipeline simple; the codec layer narrows whatever the provider returns to
// transport μ-law afterwards.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/voxloop/voxloop/pkg/audio"
)

// VoiceProfile identifies a synthesis voice on a specific provider.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier (e.g., an ElevenLabs
	// voice_id or an OpenAI voice name like "alloy").
	ID string

	// Name is the human-readable voice name, when the provider exposes one.
	Name string

	// Provider names the backend this profile belongs to.
	Provider string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text to speech using the given voice. The returned
	// audio is self-describing; callers must not assume any particular
	// encoding or sample rate.
	//
	// Failures are wrapped as [provider.Error] values so the caller can
	// substitute fallback audio instead of dropping the turn.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.Audio, error)
}
