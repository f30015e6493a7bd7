package models

import "time"

// Notification types.
const (
	NotificationLike    = "like"
	NotificationDislike = "dislike"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationMessage = "message"
)

// Notification is a persisted inbox entry.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	ActorID     uint      `gorm:"not null" json:"actor_id"`
	Actor       *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	PostID      *uint     `gorm:"index" json:"post_id,omitempty"`
	Message     string    `json:"message"`
	IsRead      bool      `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// RealtimeNotification is the payload of the "notification" realtime event.
type RealtimeNotification struct {
	Type    string      `json:"type"`
	UserID  uint        `json:"userId"`
	User    UserSummary `json:"user"`
	PostID  uint        `json:"postId"`
	Message string      `json:"message"`
}
