package audio

import (
	"math"
	"time"
)

const (
	// fallbackToneFreq is the frequency of the alert tone played when speech
	// synthesis fails. 440 Hz sits comfortably inside the narrowband range.
	fallbackToneFreq = 440.0

	// fallbackToneDuration keeps the tone short enough to read as a signal
	// rather than a hold tone.
	fallbackToneDuration = 400 * time.Millisecond

	// fallbackToneAmplitude is about a quarter of full scale, audible
	// without being startling on a handset.
	fallbackToneAmplitude = 8000
)

// FallbackTone synthesizes the fixed alert tone in transport format
// (μ-law, 8 kHz). It is played when the synthesis provider fails so the
// caller hears something rather than dead air.
func FallbackTone() Audio {
	return Tone(fallbackToneFreq, fallbackToneDuration)
}

// Tone synthesizes a mono sine tone of the given frequency and duration in
// transport format (μ-law, 8 kHz).
func Tone(freq float64, d time.Duration) Audio {
	samples := int(float64(TransportRate) * d.Seconds())
	pcm := make([]byte, samples*2)
	for i := range samples {
		v := int16(fallbackToneAmplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(TransportRate)))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return Audio{
		Data:       EncodeMulaw(pcm),
		Encoding:   EncodingMulaw,
		SampleRate: TransportRate,
	}
}
