// This file contains the bounded conversation history: an immutable system
// preamble plus a recency window of the last K messages.

package relay

import "github.com/voxloop/voxloop/pkg/provider/llm"

// DefaultHistoryKeep is the number of non-preamble messages retained after
// pruning.
const DefaultHistoryKeep = 20

// History is the per-session ordered message log. Index 0 is always the
// system preamble; pruning removes from index 1 onward, oldest first. It is
// not safe for concurrent use; the owning Session's lock guards it.
type History struct {
	preamble llm.Message
	keep     int
	tail     []llm.Message
}

// NewHistory creates a History with the given system preamble and recency
// window. A non-positive keep falls back to DefaultHistoryKeep.
func NewHistory(preamble string, keep int) *History {
	if keep <= 0 {
		keep = DefaultHistoryKeep
	}
	return &History{
		preamble: llm.Message{Role: llm.RoleSystem, Content: preamble},
		keep:     keep,
	}
}

// Append adds one message after the preamble, preserving insertion order.
func (h *History) Append(role llm.Role, content string) {
	h.tail = append(h.tail, llm.Message{Role: role, Content: content})
}

// Prune drops the oldest non-preamble messages until at most keep remain.
// The preamble is never evicted.
func (h *History) Prune() {
	if excess := len(h.tail) - h.keep; excess > 0 {
		h.tail = append(h.tail[:0:0], h.tail[excess:]...)
	}
}

// Messages returns a copy of the full history, preamble first, in
// conversation order.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(h.tail)+1)
	out = append(out, h.preamble)
	return append(out, h.tail...)
}

// Len returns the total message count including the preamble.
func (h *History) Len() int {
	return len(h.tail) + 1
}
