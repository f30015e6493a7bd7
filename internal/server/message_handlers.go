package server

import (
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// ListConversations handles GET /api/messages/conversations
// @Summary List conversations
// @Description The caller's conversations with the last message and unread count, most recent first.
// @Tags messages
// @Produce json
// @Success 200 {object} object{success=bool,conversations=[]models.ConversationSummary}
// @Security BearerAuth
// @Router /messages/conversations [get]
func (s *Server) ListConversations(c *fiber.Ctx) error {
	conversations, err := s.messageService.ListConversations(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"conversations": conversations})
}

// GetMessages handles GET /api/messages/:userId
// @Summary Messages with a user
// @Description Messages of the conversation with the user, oldest first. Empty when none exists.
// @Tags messages
// @Produce json
// @Param userId path int true "Other user ID"
// @Success 200 {object} object{success=bool,messages=[]models.Message}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/{userId} [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	messages, err := s.messageService.ListMessages(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"messages": messages})
}

// SendMessage handles POST /api/messages/:userId
// @Summary Send a message
// @Description Creates the conversation on first use and pushes newMessage to the receiver.
// @Tags messages
// @Accept json
// @Produce json
// @Param userId path int true "Receiver ID"
// @Param request body object{content=string} true "Message"
// @Success 201 {object} object{success=bool,message=models.Message}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/{userId} [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	receiverID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req sendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	msg, err := s.messageService.Send(c.UserContext(), service.SendMessageInput{
		SenderID:   currentUserID(c),
		ReceiverID: receiverID,
		Content:    req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"message": msg})
}

// MarkMessagesSeen handles POST /api/messages/:userId/seen
// @Summary Mark messages as seen
// @Tags messages
// @Produce json
// @Param userId path int true "Other user ID"
// @Success 200 {object} object{success=bool,updated=int}
// @Security BearerAuth
// @Router /messages/{userId}/seen [post]
func (s *Server) MarkMessagesSeen(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	updated, err := s.messageService.MarkSeen(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"updated": updated})
}
