package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/openav/matrix-gate/internal/audit"
	"github.com/openav/matrix-gate/internal/auth"
)

// switchRequest is the POST /switch body.
type switchRequest struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// handleStatus reports link state and the cached routing snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.gateway.Status(sessionToken(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSwitch routes an input to an output. Input 0 switches the
// output off.
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	ack, err := s.gateway.SwitchRoute(r.Context(), sessionToken(r.Context()), req.Input, req.Output)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.broadcastSwitch(req.Input, req.Output)
	writeJSON(w, http.StatusOK, map[string]any{
		"input":  req.Input,
		"output": req.Output,
		"ack":    ack,
	})
}

// handleRouting returns the routing table, from cache while fresh.
// ?refresh=true forces a device query.
func (s *Server) handleRouting(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	snap, err := s.gateway.QueryRouting(r.Context(), sessionToken(r.Context()), refresh)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleConnect brings the device link up.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Connect(r.Context(), sessionToken(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "connected": true})
}

// handleDisconnect drops the device link.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Disconnect(r.Context(), sessionToken(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}

// handleAudit lists audit entries. Requires the config permission.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Authorize(sessionToken(r.Context()), auth.PermConfig); err != nil {
		writeDomainError(w, err)
		return
	}
	if s.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []audit.Entry{}})
		return
	}

	filter := audit.Filter{
		Action:   r.URL.Query().Get("action"),
		Username: r.URL.Query().Get("username"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleHealth reports process liveness. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
