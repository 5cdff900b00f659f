package system

import (
	"time"

	"go-adrules/internal/config"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

var startedAt = time.Now()

type SystemController struct {
	hub    *Hub
	config *config.Config
}

func NewSystemController(hub *Hub, config *config.Config) *SystemController {
	return &SystemController{
		hub:    hub,
		config: config,
	}
}

// Health godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func (c *SystemController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":      "ok",
		"environment": c.config.Environment,
		"uptime":      time.Since(startedAt).Round(time.Second).String(),
	})
}

// HandleWebSocket streams rule run events to the client. The read loop
// exists only to notice disconnects; inbound messages are ignored.
func (c *SystemController) HandleWebSocket(conn *websocket.Conn) {
	c.hub.register(conn)
	defer func() {
		c.hub.unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
