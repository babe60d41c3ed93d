// Package relay implements the per-call turn controller: the state machine
// that decides when the caller has finished speaking, runs the
// transcribe → reply → synthesize pipeline exactly once per turn, suppresses
// self-echo with a mute gate, and recovers from any provider failure without
// corrupting session state.
//
// One turn is one caller utterance plus one spoken reply. The transport
// delivers fixed-cadence μ-law frames; the segmenter treats a fixed window
// of them as an utterance (no voice activity detection). Playback completion
// is tracked with an explicit mark acknowledgment before unmuting, never a
// timer alone, so the relay cannot hear its own reply as caller speech.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxloop/voxloop/internal/calllog"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/transcript"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider"
	"github.com/voxloop/voxloop/pkg/provider/llm"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

const (
	// DefaultCooldown is the post-playback interval that absorbs room echo
	// and line latency before listening resumes.
	DefaultCooldown = 1 * time.Second

	// DefaultStageTimeout bounds each provider call. A hung provider demotes
	// to a dropped turn instead of leaving the session muted forever.
	DefaultStageTimeout = 30 * time.Second

	// greetingMark names the acknowledgment requested after greeting
	// playback.
	greetingMark = "greeting"
)

// Sender delivers outbound transport messages for one connection.
// Implementations must be safe for concurrent use; the pipeline goroutine
// writes while the read loop may be closing the connection.
type Sender interface {
	// SendMedia sends one audio payload (raw μ-law; the transport layer
	// handles wire encoding).
	SendMedia(ctx context.Context, streamSid string, payload []byte) error

	// SendMark requests an end-of-playback acknowledgment under the given
	// name, delivered back as a mark event once the payload before it has
	// finished playing.
	SendMark(ctx context.Context, streamSid string, name string) error
}

// Config carries the turn-taking parameters for all sessions.
type Config struct {
	// Greeting is spoken once when the media stream opens.
	Greeting string

	// Preamble is the immutable system message at history index 0.
	Preamble string

	// FrameThreshold is the segmenter's utterance window in frames.
	// Zero means DefaultFrameThreshold.
	FrameThreshold int

	// HistoryKeep is the recency window of non-preamble messages.
	// Zero means DefaultHistoryKeep.
	HistoryKeep int

	// Cooldown is the mute interval after playback acknowledgment.
	// Zero means DefaultCooldown.
	Cooldown time.Duration

	// StageTimeout bounds each provider call. Zero means
	// DefaultStageTimeout.
	StageTimeout time.Duration

	// Voice is the synthesis voice for all replies.
	Voice tts.VoiceProfile
}

func (c *Config) applyDefaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
}

// Option is a functional option for the Controller.
type Option func(*Controller)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics instance. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithCallLog sets the call detail record store. Defaults to an in-memory
// store.
func WithCallLog(s calllog.Store) Option {
	return func(c *Controller) { c.calls = s }
}

// WithTranscriptFilter sets the noise filter applied to every transcript.
// Defaults to transcript.New().
func WithTranscriptFilter(f *transcript.Filter) Option {
	return func(c *Controller) { c.filter = f }
}

// Controller drives every session's state machine. One Controller serves
// the whole process; per-call state lives in the Session records it
// registers.
type Controller struct {
	cfg      Config
	stt      stt.Provider
	llm      llm.Provider
	tts      tts.Provider
	registry *Registry
	filter   *transcript.Filter
	metrics  *observe.Metrics
	calls    calllog.Store
	log      *slog.Logger
}

// NewController creates a Controller over the three provider clients.
func NewController(cfg Config, sttp stt.Provider, llmp llm.Provider, ttsp tts.Provider, opts ...Option) *Controller {
	cfg.applyDefaults()
	c := &Controller{
		cfg:      cfg,
		stt:      sttp,
		llm:      llmp,
		tts:      ttsp,
		registry: NewRegistry(),
		filter:   transcript.New(),
		metrics:  observe.DefaultMetrics(),
		calls:    calllog.NewMemStore(),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry returns the process-wide session registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Register creates a Session for a new connection in StateAwaitingStart and
// adds it to the registry. ctx is the connection context; its cancellation
// aborts any in-flight pipeline for the session.
func (c *Controller) Register(ctx context.Context, sender Sender, caller string) *Session {
	s := newSession(ctx, sender, c.cfg.Preamble, c.cfg.FrameThreshold, c.cfg.HistoryKeep)
	s.Caller = caller
	c.registry.Add(s)
	return s
}

// HandleEvent dispatches one transport event for a session. Events for a
// given session must be delivered in arrival order; the transport read loop
// guarantees that.
func (c *Controller) HandleEvent(s *Session, ev Event) {
	switch ev.Type {
	case EventStart:
		c.handleStart(s, ev)
	case EventMedia:
		c.handleMedia(s, ev.Frame)
	case EventMark:
		c.handleMark(s, ev.MarkName)
	case EventStop:
		c.Stop(s)
	}
}

// handleStart moves the session into GREETING and speaks the fixed greeting.
// Start events in any other state are ignored.
func (c *Controller) handleStart(s *Session, ev Event) {
	s.mu.Lock()
	if s.state != StateAwaitingStart {
		s.mu.Unlock()
		c.log.Warn("start event ignored", "session_id", s.ID, "state", s.state.String())
		return
	}
	s.streamSid = ev.StreamSid
	s.callSid = ev.CallSid
	s.state = StateGreeting
	s.inFlight = true
	s.mu.Unlock()

	c.metrics.CallStarted(s.ctx)
	if err := c.calls.Begin(s.ctx, calllog.CallRecord{
		SessionID: s.ID,
		CallSid:   ev.CallSid,
		Caller:    s.Caller,
		StartedAt: time.Now(),
	}); err != nil {
		c.log.Warn("call log begin failed", "session_id", s.ID, "error", err)
	}
	c.log.Info("call started", "session_id", s.ID, "stream_sid", ev.StreamSid, "caller", s.Caller)

	go c.speakGreeting(s)
}

// handleMedia accepts one inbound frame, subject to state and the mute
// gate. Dropped frames are never buffered; no backlog accumulates across a
// mute window.
func (c *Controller) handleMedia(s *Session, frame []byte) {
	now := time.Now()

	s.mu.Lock()
	if s.state != StateListening && s.state != StateCooldown {
		s.mu.Unlock()
		c.metrics.RecordDroppedFrame(s.ctx)
		return
	}
	if s.mute.Active(now) {
		s.mu.Unlock()
		c.metrics.RecordDroppedFrame(s.ctx)
		return
	}

	// Cooldown elapsed (checked lazily, on this frame) or mute deadline
	// passed.
	s.state = StateListening
	s.mute = MuteOff()

	s.segmenter.Accumulate(frame)
	if !s.segmenter.UtteranceReady() {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		// A pipeline is still finishing. The mute gate makes this
		// unreachable in practice; refuse a second concurrent run anyway.
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.state = StateProcessing
	frames := s.segmenter.Flush()
	s.mu.Unlock()

	go c.runTurn(s, frames)
}

// handleMark reacts to the transport's playback-complete acknowledgment:
// SPEAKING ends and the cooldown window opens.
func (c *Controller) handleMark(s *Session, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSpeaking {
		return
	}
	s.state = StateCooldown
	s.mute = MuteUntil(time.Now().Add(c.cfg.Cooldown))
	c.log.Debug("playback acknowledged", "session_id", s.ID, "mark", name)
}

// Stop tears the session down: terminal state, context cancelled, registry
// entry removed. Safe to call repeatedly; a second stop for an
// already-destroyed session is a no-op.
func (c *Controller) Stop(s *Session) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.segmenter.Flush()
	s.mu.Unlock()

	s.cancel()
	c.registry.Remove(s.ID)
	c.metrics.CallEnded(context.Background())
	if err := c.calls.End(context.Background(), s.ID, time.Now()); err != nil {
		c.log.Warn("call log end failed", "session_id", s.ID, "error", err)
	}
	c.log.Info("call ended", "session_id", s.ID)
}

// ─── pipeline ───────────────────────────────────────────────────────────────

// speakGreeting synthesizes and plays the fixed greeting. Synthesis failure
// demotes to the fallback tone; the caller always hears something.
func (c *Controller) speakGreeting(s *Session) {
	ctx, span := observe.StartSpan(s.ctx, "relay.greeting")
	defer span.End()

	clip := c.synthesizeOrTone(ctx, s, c.cfg.Greeting)
	c.deliver(ctx, s, clip, greetingMark)
}

// runTurn executes one full pipeline run for a flushed utterance. Every
// failure is local to this turn: the session returns to LISTENING and the
// caller hears either a reply, a tone, or silence.
func (c *Controller) runTurn(s *Session, frames [][]byte) {
	start := time.Now()
	ctx, span := observe.StartSpan(s.ctx, "relay.turn")
	defer span.End()
	log := c.log.With("session_id", s.ID)

	utterance := audio.ToProviderFormat(frames)

	// Transcribe.
	sctx, cancel := context.WithTimeout(ctx, c.cfg.StageTimeout)
	sttStart := time.Now()
	text, err := c.stt.Transcribe(sctx, utterance)
	cancel()
	c.metrics.RecordStage(ctx, "stt", time.Since(sttStart))
	if err != nil {
		c.recordProviderError(ctx, err)
		log.Warn("transcription failed, dropping turn", "stage", "stt", "error", err)
		c.abandonTurn(ctx, s, "stt_failure", start)
		return
	}
	text = c.filter.Clean(text)
	if text == "" {
		log.Debug("empty transcript, skipping turn")
		c.abandonTurn(ctx, s, "empty_transcript", start)
		return
	}

	s.mu.Lock()
	s.history.Append(llm.RoleUser, text)
	messages := s.history.Messages()
	s.mu.Unlock()

	// Generate.
	sctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout)
	llmStart := time.Now()
	reply, err := c.llm.Reply(sctx, messages)
	cancel()
	c.metrics.RecordStage(ctx, "llm", time.Since(llmStart))
	if err != nil {
		c.recordProviderError(ctx, err)
		log.Warn("reply generation failed, dropping turn", "stage", "llm", "error", err)
		c.abandonTurn(ctx, s, "llm_failure", start)
		return
	}
	if reply == "" {
		log.Debug("model returned empty reply, skipping turn")
		c.abandonTurn(ctx, s, "empty_reply", start)
		return
	}

	s.mu.Lock()
	s.history.Append(llm.RoleAssistant, reply)
	s.history.Prune()
	s.turns++
	turnNum := s.turns
	s.mu.Unlock()

	// Synthesize and play.
	clip := c.synthesizeOrTone(ctx, s, reply)
	if !c.deliver(ctx, s, clip, fmt.Sprintf("turn-%d", turnNum)) {
		c.metrics.RecordTurn(ctx, "discarded", time.Since(start))
		return
	}

	c.metrics.RecordTurn(ctx, "completed", time.Since(start))
	if err := c.calls.AppendTurn(ctx, s.ID, calllog.Turn{
		Transcript: text,
		Reply:      reply,
		Latency:    time.Since(start),
		At:         time.Now(),
	}); err != nil {
		log.Warn("call log append failed", "error", err)
	}
	log.Info("turn completed", "transcript", text, "latency", time.Since(start))
}

// synthesizeOrTone converts text to a playable clip, substituting the
// fallback tone when synthesis fails.
func (c *Controller) synthesizeOrTone(ctx context.Context, s *Session, text string) audio.Audio {
	sctx, cancel := context.WithTimeout(ctx, c.cfg.StageTimeout)
	defer cancel()

	ttsStart := time.Now()
	clip, err := c.tts.Synthesize(sctx, text, c.cfg.Voice)
	c.metrics.RecordStage(ctx, "tts", time.Since(ttsStart))
	if err != nil {
		c.recordProviderError(ctx, err)
		c.log.Warn("synthesis failed, substituting tone", "session_id", s.ID, "stage", "tts", "error", err)
		return audio.FallbackTone()
	}
	return clip
}

// deliver transcodes a clip, sends it with a mark request, and moves the
// session into SPEAKING under an indefinite mute. Returns false when the
// result was discarded because the session stopped first.
func (c *Controller) deliver(ctx context.Context, s *Session, clip audio.Audio, markName string) bool {
	payload, err := audio.ToTransportFormat(clip)
	if err != nil {
		c.log.Warn("transcode to transport failed, substituting tone", "session_id", s.ID, "error", err)
		payload = audio.FallbackTone().Data
	}

	if s.stopped() {
		c.clearInFlight(s)
		c.log.Debug("session stopped before playback, discarding result", "session_id", s.ID)
		return false
	}

	streamSid := s.StreamSid()
	if err := s.sender.SendMedia(ctx, streamSid, payload); err != nil {
		c.log.Warn("media send failed", "session_id", s.ID, "error", err)
		c.abandonTurn(ctx, s, "send_failure", time.Now())
		return false
	}
	if err := s.sender.SendMark(ctx, streamSid, markName); err != nil {
		c.log.Warn("mark send failed", "session_id", s.ID, "error", err)
	}

	s.mu.Lock()
	if s.state == StateGreeting || s.state == StateProcessing {
		s.state = StateSpeaking
		s.mute = MuteForever()
	}
	s.inFlight = false
	s.mu.Unlock()
	return true
}

// abandonTurn drops the current turn silently: the pipeline slot is
// released and, unless the session stopped meanwhile, listening resumes
// unmuted.
func (c *Controller) abandonTurn(ctx context.Context, s *Session, status string, start time.Time) {
	c.metrics.RecordTurn(ctx, status, time.Since(start))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if s.state == StateProcessing || s.state == StateGreeting {
		s.state = StateListening
		s.mute = MuteOff()
	}
}

// clearInFlight releases the pipeline slot without touching state.
func (c *Controller) clearInFlight(s *Session) {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// recordProviderError feeds the typed failure taxonomy into metrics.
func (c *Controller) recordProviderError(ctx context.Context, err error) {
	var pe *provider.Error
	if errors.As(err, &pe) {
		c.metrics.RecordProviderError(ctx, pe.Provider, string(pe.Kind))
		return
	}
	c.metrics.RecordProviderError(ctx, "unknown", "unknown")
}
