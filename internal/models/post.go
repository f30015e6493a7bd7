package models

import (
	"slices"
	"time"
)

// Post is a piece of content authored by a user.
type Post struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Content  string  `gorm:"type:text;not null" json:"content"`
	ImageURL *string `json:"image_url"`
	UserID   uint    `gorm:"not null;index" json:"user_id"`
	User     *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`

	// Computed when the post is loaded.
	Likes         []uint `gorm:"-" json:"likes"`
	LikesCount    int    `gorm:"-" json:"likes_count"`
	CommentsCount int    `gorm:"-" json:"comments_count"`
	Liked         bool   `gorm:"-" json:"liked"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikedBy reports whether userID is in the post's like set.
func (p *Post) LikedBy(userID uint) bool {
	return slices.Contains(p.Likes, userID)
}

// Like is a user's like on a post. One row per (user, post).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply on a post. Comments are never edited.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PostPage is one page of the global feed.
type PostPage struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"hasMore"`
	Skip    int    `json:"skip"`
	Limit   int    `json:"limit"`
}
