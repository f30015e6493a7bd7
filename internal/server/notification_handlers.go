package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
// @Summary List notifications
// @Description The 50 newest inbox entries with the unread count. Requires the notification_inbox flag.
// @Tags notifications
// @Produce json
// @Success 200 {object} object{success=bool,notifications=[]models.Notification,unread=int}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	page, err := s.notificationService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"notifications": page.Notifications,
		"unread":        page.Unread,
	})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Success 200 {object} object{success=bool,updated=int}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	updated, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"updated": updated})
}
