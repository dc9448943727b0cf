package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/config"
	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/npc"
	"github.com/antoniostano/npctalk/internal/observability"
	"github.com/antoniostano/npctalk/internal/protocol"
	"github.com/antoniostano/npctalk/internal/session"
)

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
	Active() []npc.Summary
	Terminate(playerID, reason string) bool
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only connect from the same origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Game clients usually omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/players/session", s.handleCreateSession)
	r.Post("/v1/players/session/{id}/end", s.handleEndSession)
	r.Get("/v1/players/session/ws", s.handleSessionWS)
	r.Get("/v1/conversations", s.handleListConversations)
	r.Post("/v1/conversations/{playerID}/terminate", s.handleTerminateConversation)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "orchestrator not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               "ready",
		"active_sessions":      s.sessions.ActiveCount(),
		"active_conversations": len(s.orchestrator.Active()),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.sessions.Create(req)
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, session.ErrPlayerActive):
		respondError(w, http.StatusConflict, "player_active", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	s.metrics.SessionEvent("created")

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		PlayerID:        sess.PlayerID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.orchestrator != nil {
		s.orchestrator.Terminate(sess.PlayerID, dialog.ReasonDisconnect)
	}
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	s.metrics.SessionEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusGone, "session_ended", "session is no longer active")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvent("ws_connected")
	logger := log.With().Str("session_id", sess.ID).Str("player_id", sess.PlayerID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	queue := s.cfg.OutboundQueue
	if queue <= 0 {
		queue = 64
	}
	inbound := make(chan any, queue)
	outbound := make(chan any, queue)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		if err := s.orchestrator.RunConnection(ctx, sess, inbound, outbound); err != nil {
			logger.Warn().Err(err).Msg("connection ended with error")
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				msgType, err := writeMessage(conn, msg)
				if err != nil {
					s.metrics.SessionEvent("ws_write_error")
					cancel()
					return
				}
				s.metrics.WSMessage("outbound", msgType)
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if kind != websocket.BinaryMessage {
			continue
		}
		parsed, err := protocol.ParseClientFrame(data)
		if err != nil {
			logger.Info().Err(err).Msg("invalid client frame")
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_frame",
				Source:    "gateway",
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
				s.metrics.Outbound("sent")
			default:
				// Writes stay on the writer goroutine; drop when its queue is full.
				s.metrics.Outbound("dropped")
			}
			continue
		}

		if op, ok := protocol.FrameOp(data); ok {
			s.metrics.WSMessage("inbound", protocol.OpName(op))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvent("ws_disconnected")
}

// writeMessage sends frames as binary messages and events as JSON text.
func writeMessage(conn *websocket.Conn, msg any) (string, error) {
	switch m := msg.(type) {
	case []byte:
		label := "frame"
		if op, ok := protocol.FrameOp(m); ok {
			label = protocol.OpName(op)
		}
		return label, conn.WriteMessage(websocket.BinaryMessage, m)
	case protocol.SystemEvent:
		return string(m.Type), conn.WriteJSON(m)
	case protocol.ErrorEvent:
		return string(m.Type), conn.WriteJSON(m)
	default:
		return "unknown", conn.WriteJSON(m)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
