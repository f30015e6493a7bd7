package service

import (
	"context"
	"strings"

	"murmur/internal/events"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

// MessageService implements direct messaging between two users.
type MessageService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	realtime Realtime
	events   events.Publisher
}

type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Content    string
}

// MessageEvent is the payload of message.sent.
type MessageEvent struct {
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
	SenderID       uint `json:"sender_id"`
	ReceiverID     uint `json:"receiver_id"`
}

func NewMessageService(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	realtime Realtime,
	publisher events.Publisher,
) *MessageService {
	return &MessageService{
		convRepo: convRepo,
		userRepo: userRepo,
		realtime: realtimeOrNoop(realtime),
		events:   publisherOrNoop(publisher),
	}
}

func (s *MessageService) checkPeer(ctx context.Context, userID, otherID uint) error {
	if userID == otherID {
		return models.NewValidationError("You cannot message yourself")
	}
	_, err := s.userRepo.GetByID(ctx, otherID)
	return err
}

// Send stores a message in the conversation between sender and receiver,
// creating the conversation on first contact, and pushes it to the receiver.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (_ *models.Message, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "messages", "Send", in.SenderID)
	defer func() { observability.EndSpan(span, err) }()

	content := strings.TrimSpace(in.Content)
	if err := validation.ValidateText("message", content, validation.MaxMessageLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.checkPeer(ctx, in.SenderID, in.ReceiverID); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetOrCreate(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Content:        content,
	}
	if err := s.convRepo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.realtime.PublishToUser(in.ReceiverID, EventNewMessage, msg)
	emit(ctx, s.events, events.MessageSent, MessageEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
	})
	return msg, nil
}

// ListMessages returns the conversation between userID and otherID oldest
// first. It is empty when the two have never exchanged a message.
func (s *MessageService) ListMessages(ctx context.Context, userID, otherID uint) ([]models.Message, error) {
	if err := s.checkPeer(ctx, userID, otherID); err != nil {
		return nil, err
	}
	conv, err := s.convRepo.Find(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []models.Message{}, nil
	}
	return s.convRepo.ListMessages(ctx, conv.ID)
}

func (s *MessageService) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	summaries, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	return summaries, nil
}

// MarkSeen marks every message otherID sent to userID as seen and returns how many changed.
func (s *MessageService) MarkSeen(ctx context.Context, userID, otherID uint) (int64, error) {
	if err := s.checkPeer(ctx, userID, otherID); err != nil {
		return 0, err
	}
	conv, err := s.convRepo.Find(ctx, userID, otherID)
	if err != nil || conv == nil {
		return 0, err
	}
	return s.convRepo.MarkSeen(ctx, conv.ID, userID)
}
