package app

import (
	"net/http"

	"github.com/gorilla/websocket"

	"danmakuflow/internal/hub"
	"danmakuflow/internal/util"
)

// GET /ws/:sessionId
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.isSession(r.URL.Path, "/ws/") {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(s.hub, conn)
	if !s.hub.RegisterClient(client) {
		conn.Close()
		return
	}
	client.Start()
	s.log.Info("viewer connected", "remote", util.ClientIP(r))
}
