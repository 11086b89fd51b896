package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/outfoxed-dev/mafia-server/internal/auth"
	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/rooms"
)

// Server upgrades HTTP requests into game connections.
type Server struct {
	cfg      config.Config
	verifier *auth.Verifier
	manager  *rooms.Manager
	log      *logger.Logger
	metrics  *metrics.Collector
	upgrader websocket.Upgrader
}

// NewServer wires the WebSocket endpoint.
func NewServer(cfg config.Config, v *auth.Verifier, mgr *rooms.Manager, log *logger.Logger, mc *metrics.Collector) *Server {
	return &Server{
		cfg:      cfg,
		verifier: v,
		manager:  mgr,
		log:      log,
		metrics:  mc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is not a security boundary here; auth is the token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the request and hands the connection to a Client.
// Credentials ride in the query string: ?token= for registered users,
// ?username= for guests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	identity, err := s.verifier.Verify(q.Get("token"), q.Get("username"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}
	s.metrics.ConnectionsActive.Inc()
	s.log.Info("client connected", "player", identity.UserID, "guest", identity.IsGuest)

	client := NewClient(conn, identity, s.manager, s.cfg.SendQueueSize, s.cfg.IntentRate, s.cfg.IntentBurst, s.log, s.metrics)
	go client.WritePump()
	go client.ReadPump()
}
