package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// DefaultModeratorReason is recorded when a terminate request names none.
const DefaultModeratorReason = "moderator"

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": s.orchestrator.Active()})
}

func (s *Server) handleTerminateConversation(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	playerID := strings.TrimSpace(chi.URLParam(r, "playerID"))

	var req terminateRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultModeratorReason
	}

	if !s.orchestrator.Terminate(playerID, reason) {
		respondError(w, http.StatusNotFound, "no_conversation", "player has no running conversation")
		return
	}
	log.Info().Str("player_id", playerID).Str("reason", reason).Msg("conversation terminated by moderator")
	respondJSON(w, http.StatusOK, map[string]any{"player_id": playerID, "reason": reason})
}
