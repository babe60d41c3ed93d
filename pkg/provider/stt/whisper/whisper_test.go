package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
)

func wavFixture(t *testing.T) audio.Audio {
	t.Helper()
	pcm := make([]byte, 320)
	return audio.Audio{
		Data:       audio.EncodeWAV(pcm, audio.ProviderRate),
		Encoding:   audio.EncodingWAV,
		SampleRate: audio.ProviderRate,
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
	p, err := New("http://localhost:8080/", WithModel("base.en"), WithLanguage("de"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("serverURL = %q, want trailing slash trimmed", p.serverURL)
	}
	if p.model != "base.en" || p.language != "de" {
		t.Errorf("options not applied: model=%q language=%q", p.model, p.language)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotPath, gotLanguage, gotModel string
	var gotFileLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFileLen = int(hdr.Size)
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello there \n"})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithModel("base.en"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	in := wavFixture(t)
	text, err := p.Transcribe(context.Background(), in)
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if text != "hello there" {
		t.Errorf("transcript = %q, want %q", text, "hello there")
	}
	if gotPath != "/inference" {
		t.Errorf("request path = %q, want /inference", gotPath)
	}
	if gotLanguage != "en" || gotModel != "base.en" {
		t.Errorf("form fields language=%q model=%q", gotLanguage, gotModel)
	}
	if gotFileLen != len(in.Data) {
		t.Errorf("uploaded %d bytes, want %d", gotFileLen, len(in.Data))
	}
}

func TestTranscribeRejectsNonWAV(t *testing.T) {
	t.Parallel()

	p, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Transcribe(context.Background(), audio.Audio{
		Data: make([]byte, 160), Encoding: audio.EncodingMulaw, SampleRate: 8000,
	})
	if provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindMalformed)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Transcribe(context.Background(), wavFixture(t))
	if provider.KindOf(err) != provider.KindStatus {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindStatus)
	}
}

func TestTranscribeMalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Transcribe(context.Background(), wavFixture(t))
	if provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindMalformed)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Transcribe(ctx, wavFixture(t))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var pe *provider.Error
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not a provider error", err)
	}
	if pe.Kind != provider.KindTimeout {
		t.Errorf("error kind = %q, want %q", pe.Kind, provider.KindTimeout)
	}
}
