package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"ofs-bridge/internal/model"
)

// Handler handles a single WebSocket connection. Every inbound frame is one
// command and gets its own relay exchange, so replies may arrive out of order.
type Handler struct {
	Conn   *websocket.Conn
	Bridge Exchanger
	SendMu sync.Mutex
}

// NewHandler creates a new WebSocket handler.
func NewHandler(conn *websocket.Conn, b Exchanger) *Handler {
	return &Handler{
		Conn:   conn,
		Bridge: b,
	}
}

// Send writes one frame.
func (h *Handler) Send(f model.Frame) error {
	h.SendMu.Lock()
	defer h.SendMu.Unlock()
	return h.Conn.WriteJSON(f)
}

// Loop reads frames until the client goes away. In-flight exchanges are
// cancelled when it does.
func (h *Handler) Loop(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		h.Conn.Close()
	}()

	for {
		mt, msg, err := h.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handleFrame(ctx, msg)
		}()
	}
}

func (h *Handler) handleFrame(ctx context.Context, msg []byte) {
	var hdr struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(msg, &hdr); err != nil && !json.Valid(msg) {
		h.reply(model.Frame{Type: "error", Message: "invalid JSON document"})
		return
	}

	resp, _, err := h.Bridge.Exchange(ctx, msg)
	if err != nil {
		h.reply(model.Frame{Type: "error", RequestID: hdr.RequestID, Message: err.Error()})
		return
	}
	h.reply(model.Frame{Type: "response", RequestID: hdr.RequestID, Data: string(resp)})
}

func (h *Handler) reply(f model.Frame) {
	if err := h.Send(f); err != nil {
		log.Printf("[WS] Send failed: %v", err)
	}
}
