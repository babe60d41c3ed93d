// Package server exposes the relay over HTTP: the telephony webhook that
// answers inbound calls with control markup, the WebSocket media stream
// endpoint, and the health and metrics routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/relay"
)

// defaultRejection is spoken to disallowed callers when no message is
// configured.
const defaultRejection = "This number cannot take your call. Goodbye."

// Config holds the server's routing and admission settings.
type Config struct {
	// PublicHost overrides the host used in the media stream URL. Empty
	// uses the webhook request's Host header.
	PublicHost string

	// AllowedCallers lists caller identifiers permitted to connect. An
	// empty list allows every caller.
	AllowedCallers []string

	// RejectionMessage is spoken to disallowed callers before hanging up.
	// Empty uses a built-in default.
	RejectionMessage string
}

// Option is a functional option for the Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the metrics instance. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server routes telephony traffic to the relay controller.
type Server struct {
	cfg        Config
	controller *relay.Controller
	metrics    *observe.Metrics
	log        *slog.Logger
	httpSrv    *http.Server
}

// New creates a Server over the given controller.
func New(cfg Config, controller *relay.Controller, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		metrics:    observe.DefaultMetrics(),
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the server's routing table.
func (s *Server) Handler() http.Handler {
	mw := observe.Middleware(s.metrics)
	mux := http.NewServeMux()
	mux.Handle("POST /voice", mw(http.HandlerFunc(s.handleVoice)))
	mux.Handle("GET /healthz", mw(http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /readyz", mw(http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", promhttp.Handler())
	// The media endpoint hijacks the connection for the WebSocket upgrade;
	// the wrapping response recorder would break that.
	mux.Handle("GET /media", http.HandlerFunc(s.handleMedia))
	return mux
}

// ListenAndServe starts the HTTP server on addr and blocks until it stops.
// Non-empty certFile and keyFile enable TLS.
func (s *Server) ListenAndServe(addr, certFile, keyFile string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	var err error
	if certFile != "" && keyFile != "" {
		err = s.httpSrv.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handleVoice answers the telephony provider's inbound-call webhook.
// Allowed callers get markup connecting the call to the media stream;
// everyone else gets a spoken rejection and a hangup.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	caller := r.PostFormValue("From")
	callSid := r.PostFormValue("CallSid")

	if !s.callerAllowed(caller) {
		s.log.Info("caller rejected", "caller", caller, "call_sid", callSid)
		msg := s.cfg.RejectionMessage
		if msg == "" {
			msg = defaultRejection
		}
		s.writeMarkup(w, func() ([]byte, error) { return rejectResponse(msg) })
		return
	}

	host := s.cfg.PublicHost
	if host == "" {
		host = r.Host
	}
	streamURL := url.URL{Scheme: "wss", Host: host, Path: "/media"}
	if caller != "" {
		q := streamURL.Query()
		q.Set("caller", caller)
		streamURL.RawQuery = q.Encode()
	}

	s.log.Info("caller accepted", "caller", caller, "call_sid", callSid, "stream_url", streamURL.String())
	s.writeMarkup(w, func() ([]byte, error) { return streamResponse(streamURL.String()) })
}

// callerAllowed reports whether the caller passes the allow-list. An empty
// list admits everyone.
func (s *Server) callerAllowed(caller string) bool {
	if len(s.cfg.AllowedCallers) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedCallers, caller)
}

func (s *Server) writeMarkup(w http.ResponseWriter, build func() ([]byte, error)) {
	body, err := build()
	if err != nil {
		s.log.Error("control markup marshal failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write(body); err != nil {
		s.log.Warn("webhook response write failed", "error", err)
	}
}

// handleMedia upgrades to a WebSocket and pumps transport events into the
// controller until the socket closes or a stop event arrives.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("media stream upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	caller := r.URL.Query().Get("caller")
	sess := s.controller.Register(r.Context(), &wsSender{conn: conn}, caller)
	defer s.controller.Stop(sess)

	s.log.Info("media stream opened", "session_id", sess.ID, "caller", caller)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			s.log.Debug("media stream closed", "session_id", sess.ID, "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		ev, err := relay.ParseEvent(data)
		if err != nil {
			// A bad message is skipped, never fatal for the call.
			s.log.Warn("skipping undecodable transport message", "session_id", sess.ID, "error", err)
			continue
		}
		s.controller.HandleEvent(sess, ev)
		if ev.Type == relay.EventStop {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// wsSender adapts one WebSocket connection to the relay's outbound
// interface. The mutex serialises writes; the pipeline goroutine and the
// greeting goroutine may both send.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Compile-time interface check.
var _ relay.Sender = (*wsSender)(nil)

// SendMedia implements relay.Sender.
func (ws *wsSender) SendMedia(ctx context.Context, streamSid string, payload []byte) error {
	msg, err := relay.EncodeMediaMessage(streamSid, payload)
	if err != nil {
		return fmt.Errorf("server: encode media message: %w", err)
	}
	return ws.write(ctx, msg)
}

// SendMark implements relay.Sender.
func (ws *wsSender) SendMark(ctx context.Context, streamSid, name string) error {
	msg, err := relay.EncodeMarkMessage(streamSid, name)
	if err != nil {
		return fmt.Errorf("server: encode mark message: %w", err)
	}
	return ws.write(ctx, msg)
}

func (ws *wsSender) write(ctx context.Context, msg []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.conn.Write(ctx, websocket.MessageText, msg)
}
