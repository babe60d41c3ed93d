package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestToProviderFormat(t *testing.T) {
	t.Parallel()

	// Three 160-byte μ-law frames (20 ms each at 8 kHz).
	frames := [][]byte{
		bytes.Repeat([]byte{0xFF}, 160),
		bytes.Repeat([]byte{0xFF}, 160),
		bytes.Repeat([]byte{0xFF}, 160),
	}

	got := ToProviderFormat(frames)

	if got.Encoding != EncodingWAV {
		t.Fatalf("Encoding = %q, want %q", got.Encoding, EncodingWAV)
	}
	if got.SampleRate != ProviderRate {
		t.Fatalf("SampleRate = %d, want %d", got.SampleRate, ProviderRate)
	}
	if !bytes.Equal(got.Data[0:4], []byte("RIFF")) || !bytes.Equal(got.Data[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(got.Data[24:28]); rate != ProviderRate {
		t.Errorf("wav header rate = %d, want %d", rate, ProviderRate)
	}

	// 480 μ-law samples at 8 kHz upsample to 960 PCM16 samples at 16 kHz.
	wantData := 480 * 2 * 2
	if dataSize := int(binary.LittleEndian.Uint32(got.Data[40:44])); dataSize != wantData {
		t.Errorf("wav data size = %d, want %d", dataSize, wantData)
	}
}

func TestToTransportFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        Audio
		wantBytes int
		wantErr   bool
	}{
		{
			name:      "pcm16 24kHz downsampled",
			in:        Audio{Data: make([]byte, 2400*2), Encoding: EncodingPCM16, SampleRate: 24000},
			wantBytes: 800, // 2400 samples at 24k -> 800 samples at 8k -> 1 byte each
		},
		{
			name:      "mulaw passthrough",
			in:        Audio{Data: make([]byte, 160), Encoding: EncodingMulaw, SampleRate: 8000},
			wantBytes: 160,
		},
		{
			name:    "mulaw at wrong rate",
			in:      Audio{Data: make([]byte, 160), Encoding: EncodingMulaw, SampleRate: 16000},
			wantErr: true,
		},
		{
			name:    "unknown encoding",
			in:      Audio{Data: []byte{1, 2}, Encoding: "opus", SampleRate: 48000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ToTransportFormat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ToTransportFormat() error: %v", err)
			}
			if len(got) != tt.wantBytes {
				t.Errorf("payload = %d bytes, want %d", len(got), tt.wantBytes)
			}
		})
	}
}

func TestFallbackTone(t *testing.T) {
	t.Parallel()

	tone := FallbackTone()
	if tone.Encoding != EncodingMulaw {
		t.Errorf("Encoding = %q, want %q", tone.Encoding, EncodingMulaw)
	}
	if tone.SampleRate != TransportRate {
		t.Errorf("SampleRate = %d, want %d", tone.SampleRate, TransportRate)
	}
	// 400 ms at 8 kHz, one μ-law byte per sample.
	if len(tone.Data) != 3200 {
		t.Errorf("tone length = %d bytes, want 3200", len(tone.Data))
	}
	// The tone must not be silence.
	silent := true
	for _, b := range tone.Data {
		if b != 0xFF && b != 0x7F {
			silent = false
			break
		}
	}
	if silent {
		t.Error("fallback tone decodes to silence")
	}
}

func TestResample16(t *testing.T) {
	t.Parallel()

	in := make([]byte, 800*2) // 100 ms at 8 kHz
	if got := len(Resample16(in, 8000, 16000)); got != 1600*2 {
		t.Errorf("upsample length = %d, want %d", got, 1600*2)
	}
	if got := len(Resample16(in, 8000, 8000)); got != len(in) {
		t.Errorf("same-rate length = %d, want %d", got, len(in))
	}
	down := Resample16(make([]byte, 2400*2), 24000, 8000)
	if len(down) != 800*2 {
		t.Errorf("downsample length = %d, want %d", len(down), 800*2)
	}
}

func TestAudioDuration(t *testing.T) {
	t.Parallel()

	a := Tone(440, 250*time.Millisecond)
	if d := a.Duration(); d != 250 {
		t.Errorf("Duration() = %d ms, want 250", d)
	}
}
