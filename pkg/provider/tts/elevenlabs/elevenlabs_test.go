package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	clip := []byte{0x7F, 0x12, 0x34, 0x56}
	var gotPath, gotKey, gotFormat string
	var gotBody synthRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(clip)
	}))
	defer srv.Close()

	p, err := New("xi-test", WithBaseURL(srv.URL), WithModel("eleven_flash_v2_5"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	got, err := p.Synthesize(context.Background(), "One moment please.", tts.VoiceProfile{ID: "voice-1"})
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if got.Encoding != audio.EncodingMulaw || got.SampleRate != audio.TransportRate {
		t.Errorf("clip format = %q/%d, want mulaw/8000", got.Encoding, got.SampleRate)
	}
	if len(got.Data) != len(clip) {
		t.Errorf("clip length = %d, want %d", len(got.Data), len(clip))
	}
	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotKey != "xi-test" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotFormat != "ulaw_8000" {
		t.Errorf("output_format = %q, want ulaw_8000", gotFormat)
	}
	if gotBody.Text != "One moment please." || gotBody.ModelID != "eleven_flash_v2_5" {
		t.Errorf("request body = %+v", gotBody)
	}
	if gotBody.VoiceSettings == nil {
		t.Error("voice_settings missing from request")
	}
}

func TestSynthesizeValidation(t *testing.T) {
	t.Parallel()

	p, err := New("xi-test", WithBaseURL("http://localhost:1"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := p.Synthesize(context.Background(), "hello", tts.VoiceProfile{}); provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("empty voice: error kind = %q, want malformed", provider.KindOf(err))
	}
	if _, err := p.Synthesize(context.Background(), "", tts.VoiceProfile{ID: "v"}); provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("empty text: error kind = %q, want malformed", provider.KindOf(err))
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("xi-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "voice-1"})
	if provider.KindOf(err) != provider.KindStatus {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindStatus)
	}
}

func TestSynthesizeEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := New("xi-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "voice-1"})
	if provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindMalformed)
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("request path = %q, want /v1/voices", r.URL.Path)
		}
		json.NewEncoder(w).Encode(voicesResponse{Voices: []elevenLabsVoice{
			{VoiceID: "v1", Name: "Rachel"},
			{VoiceID: "v2", Name: "Adam"},
		}})
	}))
	defer srv.Close()

	p, err := New("xi-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices() error: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Name != "Rachel" || voices[0].Provider != "elevenlabs" {
		t.Errorf("voices[0] = %+v", voices[0])
	}
}
