// Package audio implements the codec boundary between the narrowband
// telephony transport and the AI providers: G.711 μ-law encode/decode,
// linear-interpolation resampling, RIFF/WAV containers, and a fixed-frequency
// fallback tone for synthesis failures.
//
// Everything in this package is synchronous, stateless, and purely in-memory.
// No temporary files are created at any point, so there is nothing to clean
// up on error paths.
package audio

import "fmt"

// Encoding identifies the byte-level encoding of an audio payload.
type Encoding string

const (
	// EncodingMulaw is G.711 μ-law, 8 bits per sample. The telephony
	// transport's native encoding.
	EncodingMulaw Encoding = "mulaw"

	// EncodingPCM16 is 16-bit signed little-endian linear PCM.
	EncodingPCM16 Encoding = "pcm16"

	// EncodingWAV is 16-bit linear PCM wrapped in a RIFF/WAV container.
	EncodingWAV Encoding = "wav"
)

// TransportRate is the fixed sample rate of the telephony transport in Hz.
const TransportRate = 8000

// Audio is a self-describing chunk of mono audio data. It is the unit
// exchanged with the speech and synthesis provider clients, which may accept
// or produce different encodings and rates.
type Audio struct {
	Data       []byte
	Encoding   Encoding
	SampleRate int
}

// PCM16 returns the audio as raw 16-bit little-endian PCM, decoding μ-law or
// stripping a WAV header as needed. The sample rate is unchanged.
func (a Audio) PCM16() ([]byte, error) {
	switch a.Encoding {
	case EncodingPCM16:
		return a.Data, nil
	case EncodingMulaw:
		return DecodeMulaw(a.Data), nil
	case EncodingWAV:
		if len(a.Data) < wavHeaderSize {
			return nil, fmt.Errorf("audio: wav payload too short (%d bytes)", len(a.Data))
		}
		return a.Data[wavHeaderSize:], nil
	default:
		return nil, fmt.Errorf("audio: unsupported encoding %q", a.Encoding)
	}
}

// Duration returns the audio length in milliseconds, or 0 when the rate is
// unknown.
func (a Audio) Duration() int {
	if a.SampleRate <= 0 {
		return 0
	}
	samples := len(a.Data)
	if a.Encoding == EncodingPCM16 || a.Encoding == EncodingWAV {
		samples /= 2
	}
	return samples * 1000 / a.SampleRate
}
