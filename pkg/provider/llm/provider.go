// Package llm defines the Provider interface for Large Language Model
// backends.
//
// An LLM provider wraps a remote or local chat model API (e.g., OpenAI
// GPT-4o, Anthropic Claude, or an Ollama instance) and exposes one operation:
// turn a bounded conversation history into the assistant's next utterance.
// The relay speaks every reply aloud, so there is no streaming, no tool
// calling, and no token accounting here; a caller on a phone line gets the
// whole sentence or nothing.
//
// Implementations must be safe for concurrent use from multiple goroutines.
package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks behavioural instructions for the model. The relay's
	// immutable preamble uses this role.
	RoleSystem Role = "system"

	// RoleUser marks transcribed caller speech.
	RoleUser Role = "user"

	// RoleAssistant marks prior model replies.
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history handed to the model.
type Message struct {
	Role    Role
	Content string
}

// Provider is the abstraction over any chat model backend.
type Provider interface {
	// Reply sends the conversation history to the model and returns the
	// assistant's next utterance as plain text. messages must be non-empty
	// and ordered oldest first; the last message is typically RoleUser.
	//
	// Failures are wrapped as [provider.Error] values. An empty reply with a
	// nil error is valid and the caller decides what to speak instead.
	Reply(ctx context.Context, messages []Message) (string, error)
}
