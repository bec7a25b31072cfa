package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openav/matrix-gate/internal/audit"
	"github.com/openav/matrix-gate/internal/auth"
)

// loginRequest is the POST /login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the minted session token plus the role and
// permission snapshot the session was issued with. The token is
// returned exactly once; the server keeps only the session it indexes.
type loginResponse struct {
	Token       string            `json:"token"`
	SessionID   string            `json:"session_id"`
	Username    string            `json:"username"`
	Role        auth.Role         `json:"role"`
	Permissions []auth.Permission `json:"permissions"`
}

// handleLogin authenticates credentials and mints a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	sess, err := s.auth.Authenticate(clientIP(r), req.Username, req.Password)
	if err != nil {
		action := audit.ActionLoginFailed
		if errors.Is(err, auth.ErrLocked) {
			action = audit.ActionLockout
		}
		s.record(r, action, req.Username, nil)
		writeDomainError(w, err)
		return
	}

	s.record(r, audit.ActionLogin, sess.Username, map[string]any{"session_id": sess.ID})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       sess.Token,
		SessionID:   sess.ID,
		Username:    sess.Username,
		Role:        sess.Role,
		Permissions: sess.Permissions,
	})
}

// handleLogout destroys the caller's session. Logging out an already
// dead session succeeds quietly.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.auth.Logout(sessionToken(r.Context())); ok {
		s.record(r, audit.ActionLogout, sess.Username, map[string]any{"session_id": sess.ID})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// handleWSTicket issues a short-lived one-time ticket for the WebSocket
// endpoint. Browsers cannot set Authorization headers on WebSocket
// upgrades, so the ticket rides the query string instead of the token.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Authorize(sessionToken(r.Context()), "")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ticket, err := s.tickets.Issue(sess.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

// record writes an audit entry, when auditing is wired.
func (s *Server) record(r *http.Request, action, username string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(r.Context(), action, username, clientIP(r), details); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
