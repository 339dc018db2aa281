package handler

import (
	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/internal/service"
	internalWS "ai-waiter-service/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler exposes the per-session UI event stream: reveal words,
// context switches, cart state and pipeline status.
type StreamHandler struct {
	service service.IVoiceSessionService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewStreamHandler(svc service.IVoiceSessionService, hub *internalWS.Hub, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		service: svc,
		hub:     hub,
		logger:  log,
	}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/voice/sessions/:id/stream", h.ServeWs)
}

// ServeWs upgrades one UI connection and pins it to its session.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if _, err := h.service.GetSession(sessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("StreamHandler", "UI stream opened", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(h.hub, conn, sessionID)
			h.logger.Info("StreamHandler", "UI stream closed", map[string]interface{}{"session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
