package audio

import (
	"math"
	"testing"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func pcmSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}

func TestMulawRoundTrip(t *testing.T) {
	t.Parallel()

	// μ-law is lossy; the round trip must stay within segment quantisation
	// error, which grows with magnitude. Allow 3% of full scale.
	const tolerance = 1000

	in := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32767, -32768}
	decoded := pcmSamples(DecodeMulaw(EncodeMulaw(pcmBytes(in))))

	if len(decoded) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(in))
	}
	for i, want := range in {
		got := decoded[i]
		diff := int(got) - int(want)
		if diff < 0 {
			diff = -diff
		}
		// Clipped extremes land at the μ-law ceiling (±32124).
		limit := tolerance
		if want == 32767 || want == -32768 {
			limit = 700
		}
		if diff > limit {
			t.Errorf("sample %d: round trip %d -> %d, diff %d exceeds %d", i, want, got, diff, limit)
		}
	}
}

func TestEncodeMulawLength(t *testing.T) {
	t.Parallel()

	if got := len(EncodeMulaw(make([]byte, 320))); got != 160 {
		t.Errorf("EncodeMulaw(320 bytes) = %d bytes, want 160", got)
	}
	if got := len(DecodeMulaw(make([]byte, 160))); got != 320 {
		t.Errorf("DecodeMulaw(160 bytes) = %d bytes, want 320", got)
	}
	// Odd trailing byte is ignored.
	if got := len(EncodeMulaw(make([]byte, 5))); got != 2 {
		t.Errorf("EncodeMulaw(5 bytes) = %d bytes, want 2", got)
	}
}

func TestDecodeMulawSilence(t *testing.T) {
	t.Parallel()

	// 0xFF is the μ-law code for zero amplitude.
	decoded := pcmSamples(DecodeMulaw([]byte{0xFF, 0xFF, 0xFF}))
	for i, s := range decoded {
		if s != 0 {
			t.Errorf("sample %d = %d, want 0", i, s)
		}
	}
}

func TestMulawPreservesSine(t *testing.T) {
	t.Parallel()

	// A full-cycle sine should survive companding with low relative error.
	const n = 160
	in := make([]int16, n)
	for i := range in {
		in[i] = int16(12000 * math.Sin(2*math.Pi*float64(i)/n))
	}
	decoded := pcmSamples(DecodeMulaw(EncodeMulaw(pcmBytes(in))))

	var errSum, sigSum float64
	for i := range in {
		d := float64(decoded[i]) - float64(in[i])
		errSum += d * d
		sigSum += float64(in[i]) * float64(in[i])
	}
	if errSum/sigSum > 0.01 {
		t.Errorf("relative quantisation energy %.4f exceeds 1%%", errSum/sigSum)
	}
}
