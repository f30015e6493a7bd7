package server

import (
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers handles GET /api/users/search?q=...
// @Summary Search users
// @Description Case-insensitive substring match on username or name, at most 10 results.
// @Tags users
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} object{success=bool,users=[]models.User}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"users": users})
}

// GetUser handles GET /api/users/:id
// @Summary Get user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": user})
}

// UpdateProfile handles PUT /api/users/me. Omitted fields are left unchanged.
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Param request body models.ProfileUpdate true "Fields to change"
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:        currentUserID(c),
		ProfileUpdate: req,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": user})
}

// ToggleFollow handles POST /api/users/:id/follow
// @Summary Follow or unfollow a user
// @Description Flips the follow edge from the caller to the user.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,following=bool}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	following, err := s.userService.ToggleFollow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"following": following})
}

// Follow handles PUT /api/users/:id/follow
// @Summary Follow a user
// @Description Idempotent: following someone already followed is a no-op
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,following=bool}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow [put]
func (s *Server) Follow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Follow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"following": true})
}

// Unfollow handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,following=bool}
// @Security BearerAuth
// @Router /users/{id}/follow [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Unfollow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"following": false})
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary List a user's posts
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postService.ListByAuthor(c.UserContext(), authorID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"posts": posts})
}

// ListBookmarks handles GET /api/users/me/bookmarks
// @Summary List bookmarked posts
// @Tags users
// @Produce json
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Security BearerAuth
// @Router /users/me/bookmarks [get]
func (s *Server) ListBookmarks(c *fiber.Ctx) error {
	posts, err := s.userService.ListBookmarks(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"posts": posts})
}
