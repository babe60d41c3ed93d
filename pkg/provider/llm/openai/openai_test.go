package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/llm"
)

// TestConvertMessage_System checks that the system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleSystem, Content: "You are a phone agent."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that the user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleUser, Content: "Hello!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that the assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "Hi there!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(llm.Message{Role: "tool", Content: "sunny"})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestNewValidation checks constructor argument validation.
func TestNewValidation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

// TestReply runs a full request against a stubbed chat completions endpoint.
func TestReply(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("request path = %q, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": "Sure, I can help with that.",
				},
			}},
		})
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL), WithMaxTokens(150))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	reply, err := p.Reply(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a phone agent."},
		{Role: llm.RoleUser, Content: "I need to reschedule."},
	})
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if reply != "Sure, I can help with that." {
		t.Errorf("reply = %q", reply)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Errorf("request messages = %+v", gotBody.Messages)
	}
}

// TestReplyEmptyHistory checks that an empty history is rejected locally.
func TestReplyEmptyHistory(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL("http://localhost:1"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Reply(context.Background(), nil)
	if provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindMalformed)
	}
}

// TestReplyEmptyChoices checks that a response with no choices is rejected.
func TestReplyEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test", "object": "chat.completion", "choices": []any{},
		})
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_, err = p.Reply(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if provider.KindOf(err) != provider.KindMalformed {
		t.Errorf("error kind = %q, want %q", provider.KindOf(err), provider.KindMalformed)
	}
}
