package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// newRouter assembles the HTTP surface.
//
// Everything lives under /api/v1. Health is open; the WebSocket endpoint
// authenticates with a one-time ticket; everything else resolves the
// Bearer token per operation.
func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))
	r.Use(securityHeadersMiddleware)
	r.Use(corsMiddleware(s.cfg.API.CORS))
	if s.cfg.API.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(newRateLimiter(s.cfg.API.RateLimit)))
	}
	r.Use(bodyLimitMiddleware)
	r.Use(tokenMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/status", s.handleStatus)
		r.Post("/connect", s.handleConnect)
		r.Post("/switch", s.handleSwitch)
		r.Get("/query-status", s.handleRouting)
		r.Post("/disconnect", s.handleDisconnect)

		r.Get("/health", s.handleHealth)
		r.Get("/audit", s.handleAudit)
		r.Post("/ws-ticket", s.handleWSTicket)
	})

	wsPath := s.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/api/v1/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}
