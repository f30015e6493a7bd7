package server

import (
	"context"
	"errors"

	"murmur/internal/auth"
	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueWebSocketTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a single-use ticket valid for 30 seconds, to be passed as ?ticket= on /api/ws.
// @Tags realtime
// @Produce json
// @Success 200 {object} object{success=bool,ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/ticket [post]
func (s *Server) IssueWebSocketTicket(c *fiber.Ctx) error {
	ticket, err := s.sessions.IssueTicket(c.UserContext(), currentUserID(c))
	if errors.Is(err, auth.ErrSessionStoreUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "WebSocket tickets are unavailable, connect with ?token= instead",
			Code:  models.CodeInternal,
		})
	}
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"ticket":     ticket,
		"expires_in": int(auth.TicketTTL.Seconds()),
	})
}

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// WebSocketHandler handles GET /api/ws. The connection receives
// getOnlineUsers, newMessage, newPost and notification frames until it closes.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(ctx, userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected", "user_id", userID, "error", err)
			_ = conn.WriteJSON(fiber.Map{"type": "error", "payload": err.Error()})
			_ = conn.Close()
			return
		}

		client.Run()
	})
}
