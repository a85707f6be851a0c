package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Exchanger relays one command document and reports the HTTP-equivalent status.
type Exchanger interface {
	Exchange(ctx context.Context, doc []byte) ([]byte, int, error)
}

// Server manages WebSocket connections.
type Server struct {
	Bridge   Exchanger
	Upgrader websocket.Upgrader
	MaxFrame int64
}

// NewServer creates a new WebSocket server. maxFrame caps each inbound
// command like the HTTP body limit does.
func NewServer(b Exchanger, maxFrame int64) *Server {
	return &Server{
		Bridge:   b,
		MaxFrame: maxFrame,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // any origin, same as the HTTP route
			},
		},
	}
}

// ServeHTTP handles the WebSocket handshake and connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	if s.MaxFrame > 0 {
		conn.SetReadLimit(s.MaxFrame)
	}

	log.Printf("[WS] New connection from %s", r.RemoteAddr)
	handler := NewHandler(conn, s.Bridge)
	handler.Loop(r.Context())
}
