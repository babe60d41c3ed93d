package relay

import (
	"bytes"
	"testing"
)

func TestSegmenterAccumulatesUntilThreshold(t *testing.T) {
	t.Parallel()
	seg := NewSegmenter(3)

	seg.Accumulate([]byte{1})
	seg.Accumulate([]byte{2})
	if seg.UtteranceReady() {
		t.Fatal("UtteranceReady before threshold")
	}
	seg.Accumulate([]byte{3})
	if !seg.UtteranceReady() {
		t.Fatal("UtteranceReady false at threshold")
	}
	if seg.Len() != 3 {
		t.Errorf("Len = %d, want 3", seg.Len())
	}
}

func TestSegmenterFlushPreservesOrder(t *testing.T) {
	t.Parallel()
	seg := NewSegmenter(3)
	for _, b := range []byte{10, 20, 30} {
		seg.Accumulate([]byte{b})
	}

	frames := seg.Flush()
	want := [][]byte{{10}, {20}, {30}}
	if len(frames) != len(want) {
		t.Fatalf("Flush returned %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if !bytes.Equal(frames[i], want[i]) {
			t.Errorf("frames[%d] = %v, want %v", i, frames[i], want[i])
		}
	}
	if seg.Len() != 0 {
		t.Errorf("Len after Flush = %d, want 0", seg.Len())
	}
	if seg.UtteranceReady() {
		t.Error("UtteranceReady after Flush")
	}
}

func TestSegmenterDefaultThreshold(t *testing.T) {
	t.Parallel()
	seg := NewSegmenter(0)
	for range DefaultFrameThreshold - 1 {
		seg.Accumulate([]byte{0})
	}
	if seg.UtteranceReady() {
		t.Fatal("ready below default threshold")
	}
	seg.Accumulate([]byte{0})
	if !seg.UtteranceReady() {
		t.Fatal("not ready at default threshold")
	}
}
