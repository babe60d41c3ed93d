package audio

import "fmt"

// ProviderRate is the sample rate expected by batch speech-to-text
// providers. Whisper-family models are trained on 16 kHz input.
const ProviderRate = 16000

// ToProviderFormat concatenates raw μ-law transport frames and transcodes
// them to the speech provider's input format: a 16 kHz mono PCM WAV.
func ToProviderFormat(frames [][]byte) Audio {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	ulaw := make([]byte, 0, total)
	for _, f := range frames {
		ulaw = append(ulaw, f...)
	}

	pcm := DecodeMulaw(ulaw)
	pcm = Resample16(pcm, TransportRate, ProviderRate)
	return Audio{
		Data:       EncodeWAV(pcm, ProviderRate),
		Encoding:   EncodingWAV,
		SampleRate: ProviderRate,
	}
}

// ToTransportFormat transcodes synthesized speech down to the transport's
// μ-law 8 kHz encoding. Providers that emit μ-law at the transport rate pass
// through untouched.
func ToTransportFormat(a Audio) ([]byte, error) {
	if a.Encoding == EncodingMulaw {
		if a.SampleRate != TransportRate {
			return nil, fmt.Errorf("audio: μ-law input at %d Hz, want %d Hz", a.SampleRate, TransportRate)
		}
		return a.Data, nil
	}

	pcm, err := a.PCM16()
	if err != nil {
		return nil, err
	}
	pcm = Resample16(pcm, a.SampleRate, TransportRate)
	return EncodeMulaw(pcm), nil
}
