// Package calllog persists call detail records: one row per call with its
// transcribed turns. Records are diagnostic and billing material, not
// conversational memory; nothing here feeds back into a later call's
// history.
package calllog

import (
	"context"
	"time"
)

// CallRecord describes one call at the moment its media stream opened.
type CallRecord struct {
	// SessionID is the relay's session identity.
	SessionID string

	// CallSid is the transport's call identifier, when provided.
	CallSid string

	// Caller is the caller identifier from the inbound webhook, when known.
	Caller string

	// StartedAt is when the media stream opened.
	StartedAt time.Time
}

// Turn is one completed exchange within a call.
type Turn struct {
	// Transcript is the caller's transcribed utterance.
	Transcript string

	// Reply is the assistant's spoken reply.
	Reply string

	// Latency is the end-to-end pipeline duration for this turn.
	Latency time.Duration

	// At is when the turn completed.
	At time.Time
}

// Store persists call detail records. Implementations must be safe for
// concurrent use; many calls log at once.
type Store interface {
	// Begin records a new call. Called once per session on the start event.
	Begin(ctx context.Context, rec CallRecord) error

	// AppendTurn records one completed turn for an open call.
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error

	// End marks the call finished. Ending an unknown or already-ended call
	// is a no-op; stop events may arrive twice.
	End(ctx context.Context, sessionID string, endedAt time.Time) error
}
