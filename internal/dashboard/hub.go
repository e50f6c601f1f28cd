package dashboard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback dashboard, no cross-origin concern
	},
}

// hub maintains the set of connected dashboard viewers and broadcasts
// report snapshots to all of them whenever the scored report changes.
type hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mu        sync.Mutex
	logger    *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		logger:    logger,
	}
}

// run drains broadcast and fans each message out to every connected
// client, dropping (and closing) any client whose write doesn't
// complete within the deadline rather than letting one slow viewer
// stall the rest.
func (h *hub) run() {
	for message := range h.broadcast {
		h.mu.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("dashboard websocket write failed", "error", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

// subscribe upgrades the request to a websocket and registers the
// connection as a broadcast target until it disconnects.
func (h *hub) subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("dashboard websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("dashboard viewer connected", "clients", count)

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mu.Unlock()
			conn.Close()
			h.logger.Info("dashboard viewer disconnected", "clients", remaining)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) broadcastJSON(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("dashboard broadcast channel full, dropping update")
	}
}
