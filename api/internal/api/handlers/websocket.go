// api/internal/api/handlers/websocket.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// ==============================================================================
// 1. WebSocket Configuration & Constants
// ==============================================================================

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. We only stream out.
	maxMessageSize = 512
)

// EventSource is the subscription side of the telemetry hub.
type EventSource interface {
	Subscribe() chan domain.StateEvent
	Unsubscribe(ch chan domain.StateEvent)
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type WebSocketHandler struct {
	Events   EventSource
	Logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler builds the state stream handler. Browser upgrades are
// accepted only from allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(events EventSource, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		Events: events,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin.
				if origin == "" || allowed["*"] {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ==============================================================================
// 3. HTTP Methods (The Upgrader)
// ==============================================================================

// StreamUnlockState handles GET /api/v1/ws/unlock
// The most recent event is replayed on connect, then every transition follows.
func (h *WebSocketHandler) StreamUnlockState(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
		return
	}

	streamID := uuid.NewString()
	events := h.Events.Subscribe()
	defer h.Events.Unsubscribe(events)

	done := make(chan struct{})
	go h.readPump(ws, streamID, done)

	// Blocks until the client goes away or the hub drops us.
	h.writePump(ws, events, streamID, done)
}

// ==============================================================================
// 4. The Write Pump (Streaming State Events)
// ==============================================================================

func (h *WebSocketHandler) writePump(ws *websocket.Conn, events <-chan domain.StateEvent, streamID string, done <-chan struct{}) {
	defer func() {
		ws.Close()
		h.Logger.Debug("WebSocket write pump closed", slog.String("stream_id", streamID))
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			ws.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
				return
			}

			if err := ws.WriteJSON(event); err != nil {
				h.Logger.Warn("Failed to write JSON to WebSocket",
					slog.String("stream_id", streamID),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// ==============================================================================
// 5. The Read Pump (Connection Keep-Alive)
// ==============================================================================

func (h *WebSocketHandler) readPump(ws *websocket.Conn, streamID string, done chan<- struct{}) {
	defer func() {
		close(done)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Inbound text is ignored; reading drives Pong/Close handling.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("WebSocket closed unexpectedly",
					slog.String("stream_id", streamID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}
