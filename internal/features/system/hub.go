package system

import (
	"encoding/json"
	"sync"

	"go-adrules/internal/features/rule"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans rule run events out to every connected websocket client. A
// client that cannot be written to is dropped; the engine never blocks
// on a slow listener.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// PublishRunEvent broadcasts a run event to all connected clients
func (h *Hub) PublishRunEvent(ev rule.RunEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("Failed to encode run event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug("Dropping websocket client", zap.Error(err))
			c.Close()
			delete(h.clients, c)
		}
	}
}
