package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventReadDeadline = 60 * time.Second

// handleEvents upgrades the connection and subscribes it to transformation
// progress events. Clients only receive; inbound frames just refresh the
// read deadline until the peer goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warning("server", "WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(eventReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(eventReadDeadline))
		return nil
	})

	s.hub.Register(conn)
	defer s.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(eventReadDeadline))
	}
}
