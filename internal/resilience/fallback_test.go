package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider/llm"
	llmmock "github.com/voxloop/voxloop/pkg/provider/llm/mock"
	sttmock "github.com/voxloop/voxloop/pkg/provider/stt/mock"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
)

func fallbackCfg() FallbackConfig {
	return FallbackConfig{Breaker: BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour}}
}

func TestSTTFallbackUsesPrimary(t *testing.T) {
	primary := &sttmock.Provider{Transcript: "from primary"}
	backup := &sttmock.Provider{Transcript: "from backup"}

	f := NewSTTFallback(primary, "primary", fallbackCfg())
	f.AddFallback("backup", backup)

	text, err := f.Transcribe(context.Background(), audio.Audio{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "from primary" {
		t.Errorf("text = %q, want primary's transcript", text)
	}
	if backup.CallCount() != 0 {
		t.Error("backup consulted while primary healthy")
	}
}

func TestSTTFallbackFailsOver(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackend}
	backup := &sttmock.Provider{Transcript: "from backup"}

	f := NewSTTFallback(primary, "primary", fallbackCfg())
	f.AddFallback("backup", backup)

	text, err := f.Transcribe(context.Background(), audio.Audio{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "from backup" {
		t.Errorf("text = %q, want backup's transcript", text)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.CallCount())
	}
}

func TestSTTFallbackAllFailed(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackend}
	f := NewSTTFallback(primary, "primary", fallbackCfg())

	_, err := f.Transcribe(context.Background(), audio.Audio{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallbackSkipsOpenBreaker(t *testing.T) {
	primary := &sttmock.Provider{Err: errBackend}
	backup := &sttmock.Provider{Transcript: "from backup"}

	f := NewSTTFallback(primary, "primary", FallbackConfig{
		Breaker: BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("backup", backup)

	// Two failing calls trip the primary's breaker.
	for range 2 {
		if _, err := f.Transcribe(context.Background(), audio.Audio{}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	if primary.CallCount() != 2 {
		t.Fatalf("primary calls = %d, want 2", primary.CallCount())
	}

	// Third call skips the primary entirely.
	if _, err := f.Transcribe(context.Background(), audio.Audio{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if primary.CallCount() != 2 {
		t.Errorf("primary consulted while its breaker was open; calls = %d", primary.CallCount())
	}
	if backup.CallCount() != 3 {
		t.Errorf("backup calls = %d, want 3", backup.CallCount())
	}
}

func TestLLMFallbackFailsOver(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackend}
	backup := &llmmock.Provider{Response: "from backup"}

	f := NewLLMFallback(primary, "primary", fallbackCfg())
	f.AddFallback("backup", backup)

	reply, err := f.Reply(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "from backup" {
		t.Errorf("reply = %q, want backup's response", reply)
	}
	if got := backup.LastMessages(); len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("backup received history %+v", got)
	}
}

func TestTTSFallbackFailsOver(t *testing.T) {
	primary := &ttsmock.Provider{Err: errBackend}
	backup := &ttsmock.Provider{}

	f := NewTTSFallback(primary, "primary", fallbackCfg())
	f.AddFallback("backup", backup)

	clip, err := f.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(clip.Data) == 0 {
		t.Error("empty clip from backup")
	}
	if backup.LastText() != "hello" {
		t.Errorf("backup received text %q", backup.LastText())
	}
}
