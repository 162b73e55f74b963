package websocket

import (
	"log"

	ws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/clickwars/clickwars/app/dto"
	"github.com/clickwars/clickwars/config"
)

// NewHandler returns the fiber handler that upgrades HTTP requests to
// WebSocket connections and hands them to the registry. The upgrade runs on
// the underlying fasthttp request context; the callback blocks for the
// lifetime of the connection.
func NewHandler(registry *Registry, cfg config.WebSocketConfig) fiber.Handler {
	upgrader := ws.FastHTTPUpgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(*fasthttp.RequestCtx) bool {
			// Browser origin policy is enforced by the CORS middleware on
			// the HTTP surface; the socket itself accepts any origin.
			return true
		},
	}

	return func(c fiber.Ctx) error {
		remoteAddress := c.IP()
		userAgent := c.Get("User-Agent")

		err := upgrader.Upgrade(c.RequestCtx(), func(conn *ws.Conn) {
			client := registry.Accept(conn, remoteAddress, userAgent)
			registry.ReadLoop(client)
		})
		if err != nil {
			log.Printf("WebSocket upgrade failed for %s: %v", remoteAddress, err)
			return c.Status(fiber.StatusUpgradeRequired).JSON(dto.APIResponse{
				Success: false,
				Message: "This endpoint only accepts WebSocket connections",
				Error: dto.ErrorDetail{
					Code: "UPGRADE_REQUIRED",
				},
			})
		}
		return nil
	}
}
