// Package api exposes the Matrix Gate HTTP and WebSocket surface.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openav/matrix-gate/internal/audit"
	"github.com/openav/matrix-gate/internal/auth"
	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/database"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
	"github.com/openav/matrix-gate/internal/matrix"
)

// Deps carries everything the server needs. Audit and DB may be nil.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Auth    *auth.Service
	Gateway *matrix.Gateway
	Audit   *audit.Repository
	DB      *database.DB
	Version string
}

// Server is the Matrix Gate HTTP server.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	auth     *auth.Service
	gateway  *matrix.Gateway
	audit    *audit.Repository
	db       *database.DB
	version  string
	hub      *Hub
	tickets  *ticketStore
	upgrader websocket.Upgrader

	wsPingInterval time.Duration
	wsPongWait     time.Duration
	wsMaxMessage   int64

	httpServer *http.Server
}

// New builds the server and its router.
func New(deps Deps) *Server {
	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger.With("component", "api"),
		auth:    deps.Auth,
		gateway: deps.Gateway,
		audit:   deps.Audit,
		db:      deps.DB,
		version: deps.Version,
		hub:     NewHub(deps.Logger),
		tickets: newTicketStore(),

		wsPingInterval: deps.Config.GetPingInterval(),
		wsPongWait:     deps.Config.GetPongTimeout(),
		wsMaxMessage:   int64(deps.Config.WebSocket.MaxMessageSize),
	}
	if s.wsPingInterval <= 0 {
		s.wsPingInterval = defaultPingInterval
	}
	if s.wsPongWait <= 0 {
		s.wsPongWait = defaultPongWait
	}
	if s.wsMaxMessage <= 0 {
		s.wsMaxMessage = defaultMaxMessage
	}

	allowed := make(map[string]bool, len(deps.Config.API.CORS.AllowedOrigins))
	allowAny := false
	for _, o := range deps.Config.API.CORS.AllowedOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowAny || allowed[origin]
		},
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(deps.Config.API.Host, fmt.Sprintf("%d", deps.Config.API.Port)),
		Handler:      s.newRouter(),
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP (or HTTPS when TLS is configured) until the server
// is shut down. Always returns a non-nil error; http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server starting",
		"addr", s.httpServer.Addr,
		"tls", s.cfg.API.TLS.Enabled,
	)

	if s.cfg.API.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.API.TLS.CertFile, s.cfg.API.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and disconnects WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}
