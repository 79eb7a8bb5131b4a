package relay

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket sessions and runs them against
// the broker.
type Server struct {
	broker        *Broker
	queueSize     int
	maxFrameBytes int64
	log           *slog.Logger
	upgrader      websocket.Upgrader
}

func NewServer(b *Broker, queueSize int, maxFrameBytes int64, logger *slog.Logger) *Server {
	return &Server{
		broker:        b,
		queueSize:     queueSize,
		maxFrameBytes: maxFrameBytes,
		log:           logger,
		upgrader: websocket.Upgrader{
			// Relay clients are arbitrary web and native apps; the protocol
			// has no browser-origin trust model.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := newSession(conn, srv.queueSize, srv.log)
	srv.broker.addSession(s)
	srv.log.Info("peer connected", "session", s.id, "remote", r.RemoteAddr)

	go s.writePump()
	s.readPump(srv.broker, srv.maxFrameBytes)

	// Read pump returned: peer went away or the session was shut down as a
	// slow consumer. Either way teardown cascades to its subscriptions.
	s.shut()
	srv.broker.removeSession(s)
	srv.log.Info("peer disconnected", "session", s.id)
}
