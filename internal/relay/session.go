// This file contains the Session record and its two small value types: the
// turn state enum and the tagged mute variant.

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the turn-taking state of one session.
type State int

const (
	// StateAwaitingStart is the initial state; everything except the start
	// event is ignored.
	StateAwaitingStart State = iota

	// StateGreeting covers synthesis and playback of the fixed greeting.
	StateGreeting

	// StateListening accepts caller audio into the segmenter.
	StateListening

	// StateProcessing runs the transcribe, reply, synthesize pipeline for
	// one utterance.
	StateProcessing

	// StateSpeaking waits for the transport to confirm reply playback.
	StateSpeaking

	// StateCooldown absorbs room echo and line latency after playback.
	StateCooldown

	// StateStopped is terminal; the session's resources are released.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting_start"
	case StateGreeting:
		return "greeting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateCooldown:
		return "cooldown"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// muteKind discriminates the MuteState variant.
type muteKind int

const (
	muteOff muteKind = iota
	muteUntil
	muteForever
)

// MuteState is a tagged variant: no mute, mute until a deadline, or mute
// until explicitly cleared. Using a variant instead of a sentinel timestamp
// keeps deadline comparisons away from the "forever" case.
type MuteState struct {
	kind  muteKind
	until time.Time
}

// MuteOff returns the unmuted state.
func MuteOff() MuteState { return MuteState{kind: muteOff} }

// MuteUntil mutes inbound audio until the deadline passes.
func MuteUntil(deadline time.Time) MuteState {
	return MuteState{kind: muteUntil, until: deadline}
}

// MuteForever mutes inbound audio until the controller clears it.
func MuteForever() MuteState { return MuteState{kind: muteForever} }

// Active reports whether inbound audio must be dropped at the given instant.
func (m MuteState) Active(now time.Time) bool {
	switch m.kind {
	case muteForever:
		return true
	case muteUntil:
		return now.Before(m.until)
	default:
		return false
	}
}

// Session is the complete per-call record: identity, turn state, mute gate,
// segmenter buffer, and conversation history. One Session exists per live
// connection.
//
// All fields below mu are guarded by it. The controller is the only writer;
// the transport read loop delivers events for one session strictly in
// arrival order, and the pipeline goroutine re-locks before applying its
// result.
type Session struct {
	// ID is the process-local session identity, assigned at creation.
	ID string

	// Caller is the caller identifier from the inbound webhook, when known.
	Caller string

	sender Sender

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	streamSid string
	callSid   string
	state     State
	mute      MuteState
	segmenter *Segmenter
	history   *History
	inFlight  bool
	turns     int
}

// newSession builds a Session in StateAwaitingStart. ctx is the connection
// context; cancelling it aborts any in-flight pipeline.
func newSession(ctx context.Context, sender Sender, preamble string, frameThreshold, historyKeep int) *Session {
	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		ID:        uuid.NewString(),
		sender:    sender,
		ctx:       sctx,
		cancel:    cancel,
		state:     StateAwaitingStart,
		mute:      MuteOff(),
		segmenter: NewSegmenter(frameThreshold),
		history:   NewHistory(preamble, historyKeep),
	}
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StreamSid returns the transport-assigned stream identifier, or "" before
// the start event.
func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// BufferedFrames returns the number of frames awaiting segmentation.
func (s *Session) BufferedFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmenter.Len()
}

// stopped reports whether the session reached StateStopped or its context
// was cancelled. Pipeline results arriving afterwards are discarded.
func (s *Session) stopped() bool {
	if s.ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStopped
}
