// Package mock provides a test double for the llm package interface.
//
// Use Provider to script replies and inspect the exact conversation history
// each call received.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/llm"
)

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// ReplyCall records a single invocation of Provider.Reply.
type ReplyCall struct {
	// Ctx is the context passed to Reply.
	Ctx context.Context
	// Messages is a copy of the history passed to Reply.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Reply is the text returned by every Reply call when Replies is empty.
	Response string

	// Replies, if non-empty, is consumed one entry per call; after the last
	// entry Reply falls back to Response.
	Replies []string

	// Err, if non-nil, is returned as the error from every Reply call.
	Err error

	// ReplyCalls records every call to Reply in order.
	ReplyCalls []ReplyCall
}

// Reply records the call and returns the next scripted response.
func (p *Provider) Reply(ctx context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	p.ReplyCalls = append(p.ReplyCalls, ReplyCall{Ctx: ctx, Messages: copied})
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Replies) > 0 {
		text := p.Replies[0]
		p.Replies = p.Replies[1:]
		return text, nil
	}
	return p.Response, nil
}

// CallCount returns the number of recorded Reply calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ReplyCalls)
}

// LastMessages returns the history from the most recent Reply call, or nil
// when Reply has not been called.
func (p *Provider) LastMessages() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ReplyCalls) == 0 {
		return nil
	}
	return p.ReplyCalls[len(p.ReplyCalls)-1].Messages
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReplyCalls = nil
}
