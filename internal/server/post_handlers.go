package server

import (
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

type addCommentRequest struct {
	Content string `json:"content"`
}

// ListPosts handles GET /api/posts?skip=&limit=
// @Summary List posts
// @Description Global feed, newest first. hasMore is true when posts exist past skip+limit.
// @Tags posts
// @Produce json
// @Param skip query int false "Posts to skip" default(0)
// @Param limit query int false "Page size (max 100)" default(10)
// @Success 200 {object} models.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return respondError(c, err)
	}
	result, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Skip:     page.Skip,
		Limit:    page.Limit,
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"posts":   result.Posts,
		"hasMore": result.HasMore,
		"skip":    result.Skip,
		"limit":   result.Limit,
	})
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Stores the post and pushes newPost to every connected client.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body object{content=string,image_url=string} true "Post"
// @Success 201 {object} object{success=bool,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   currentUserID(c),
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"post": post})
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Removes the post with its comments. Only the author may delete.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"message": "Post deleted"})
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.LikePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"post": post})
}

// DislikePost handles POST /api/posts/:id/dislike
// @Summary Remove a like
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/dislike [post]
func (s *Server) DislikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.DislikePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"post": post})
}

// AddComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} object{success=bool,comment=models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req addCommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	comment, err := s.postService.AddComment(c.UserContext(), service.AddCommentInput{
		UserID:  currentUserID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"comment": comment})
}

// ToggleBookmark handles POST /api/posts/:id/bookmark
// @Summary Bookmark or unbookmark a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,bookmarked=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/bookmark [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	bookmarked, err := s.userService.ToggleBookmark(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"bookmarked": bookmarked})
}
