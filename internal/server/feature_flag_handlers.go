package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags handles GET /api/features
// @Summary Feature flags for the current user
// @Tags features
// @Produce json
// @Success 200 {object} object{success=bool,raw=map[string]string,evaluated=map[string]bool}
// @Security BearerAuth
// @Router /features [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
