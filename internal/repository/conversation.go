package repository

import (
	"context"
	"errors"
	"time"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository persists direct-message threads keyed by an unordered user pair.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	Find(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error)
	ListForUser(ctx context.Context, userID uint) ([]models.ConversationSummary, error)
	MarkSeen(ctx context.Context, conversationID, receiverID uint) (int64, error)
}

type conversationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewConversationRepository returns a ConversationRepository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db, log: observability.NewRepoLogger("conversations")}
}

func pairQuery(db *gorm.DB, userA, userB uint) *gorm.DB {
	low, high := models.ConversationPair(userA, userB)
	return db.Where("user_low_id = ? AND user_high_id = ?", low, high)
}

// GetOrCreate is safe against concurrent first messages: the insert is a
// no-op on conflict and the row is then read back.
func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	low, high := models.ConversationPair(userA, userB)
	db := r.db.WithContext(ctx)

	conv := models.Conversation{UserLowID: low, UserHighID: high}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		r.log.LogError(ctx, err, "get_or_create")
		return nil, models.NewInternalError(err)
	}

	var existing models.Conversation
	if err := pairQuery(db, low, high).First(&existing).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &existing, nil
}

// Find returns nil, nil when the two users never exchanged messages.
func (r *conversationRepository) Find(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := pairQuery(r.db.WithContext(ctx), userA, userB).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// AddMessage stores msg and bumps the conversation's activity time.
func (r *conversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "add_message")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"conversation_id": msg.ConversationID, "message_id": msg.ID})
	return nil
}

// ListMessages returns every message of the conversation oldest first.
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	db := r.db.WithContext(ctx)

	var convs []models.Conversation
	if err := db.Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return summaries, nil
	}

	otherIDs := make([]uint, len(convs))
	for i := range convs {
		otherIDs[i] = convs[i].Other(userID)
	}
	var others []models.User
	if err := db.Select("id", "username", "name", "avatar").Where("id IN ?", otherIDs).Find(&others).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	byID := make(map[uint]models.UserSummary, len(others))
	for i := range others {
		byID[others[i].ID] = others[i].Summary()
	}

	for i := range convs {
		summary := models.ConversationSummary{
			ID:          convs[i].ID,
			Participant: byID[convs[i].Other(userID)],
			UpdatedAt:   convs[i].UpdatedAt,
		}

		var last models.Message
		err := db.Where("conversation_id = ?", convs[i].ID).Order("created_at DESC, id DESC").First(&last).Error
		switch {
		case err == nil:
			summary.LastMessage = &last
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, models.NewInternalError(err)
		}

		if err := db.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND seen = ?", convs[i].ID, userID, false).
			Count(&summary.Unread).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// MarkSeen flags every unseen message addressed to receiverID in the conversation.
func (r *conversationRepository) MarkSeen(ctx context.Context, conversationID, receiverID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND seen = ?", conversationID, receiverID, false).
		Update("seen", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
