// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account. Password is empty for accounts created through OAuth.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Name     string `gorm:"size:50" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"-"`
	Password string `json:"-"`
	Bio      string `gorm:"size:160" json:"bio"`
	Link     string `gorm:"size:200" json:"link"`
	// Skills is stored as a JSON array.
	Skills []string `gorm:"serializer:json" json:"skills"`
	Avatar string   `json:"avatar"`

	Provider   *string `gorm:"uniqueIndex:idx_users_provider" json:"provider,omitempty"`
	ProviderID *string `gorm:"uniqueIndex:idx_users_provider" json:"-"`

	// Relationship sets are derived from the follows and bookmarks tables.
	Followers []uint `gorm:"-" json:"followers"`
	Following []uint `gorm:"-" json:"following"`
	Bookmarks []uint `gorm:"-" json:"bookmarks"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the public profile snapshot embedded in events and listings.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Summary returns the public snapshot of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}

// Account is the signed-in user's own view of their profile. It is the only
// payload that carries the email address.
type Account struct {
	*User
	Email string `json:"email"`
}

// Account returns the self view of u.
func (u *User) Account() Account {
	return Account{User: u, Email: u.Email}
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// Follow is one directed edge of the social graph.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bookmark marks a post as saved by a user.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileUpdate carries the optional fields of a profile edit. Nil fields are left untouched.
type ProfileUpdate struct {
	Name   *string   `json:"name"`
	Bio    *string   `json:"bio"`
	Link   *string   `json:"link"`
	Skills *[]string `json:"skills"`
	Avatar *string   `json:"avatar"`
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Bio == nil && p.Link == nil && p.Skills == nil && p.Avatar == nil
}
