package relay

import (
	"context"
	"testing"
)

type nopSender struct{}

func (nopSender) SendMedia(context.Context, string, []byte) error { return nil }
func (nopSender) SendMark(context.Context, string, string) error  { return nil }

func TestRegistryAddGetRemove(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	s := newSession(context.Background(), nopSender{}, "", 0, 0)

	r.Add(s)
	if got, ok := r.Get(s.ID); !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v", s.ID, got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if !r.Remove(s.ID) {
		t.Fatal("Remove returned false for a present session")
	}
	if _, ok := r.Get(s.ID); ok {
		t.Error("session still present after Remove")
	}

	// Removing twice is a no-op.
	if r.Remove(s.ID) {
		t.Error("second Remove returned true")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistryUnknownID(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Error("Get returned a session for an unknown id")
	}
	if r.Remove("missing") {
		t.Error("Remove returned true for an unknown id")
	}
}
