package models

import "time"

// Conversation is the direct-message thread between two users. The pair is
// stored in canonical order so (a, b) and (b, a) resolve to the same row.
type Conversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserLowID  uint      `gorm:"not null;uniqueIndex:idx_conversations_pair" json:"user_low_id"`
	UserHighID uint      `gorm:"not null;uniqueIndex:idx_conversations_pair;index" json:"user_high_id"`
	Messages   []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConversationPair returns the canonical (low, high) ordering of a and b.
func ConversationPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// Includes reports whether userID participates in the conversation.
func (c *Conversation) Includes(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// Message is a single direct message. Only Seen changes after creation.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverID     uint      `gorm:"not null;index" json:"receiver_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Seen           bool      `gorm:"default:false" json:"seen"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// ConversationSummary is a row of a user's inbox.
type ConversationSummary struct {
	ID          uint        `json:"id"`
	Participant UserSummary `json:"participant"`
	LastMessage *Message    `json:"last_message,omitempty"`
	Unread      int64       `json:"unread"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
