package repository

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository persists follow edges and bookmarks. Each relation is a
// single row, so both sides of a follow always agree.
type SocialRepository interface {
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Follow(ctx context.Context, followerID, followingID uint) error
	Unfollow(ctx context.Context, followerID, followingID uint) error
	ToggleFollow(ctx context.Context, followerID, followingID uint) (bool, error)
	ToggleBookmark(ctx context.Context, userID, postID uint) (bool, error)
}

type socialRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSocialRepository returns a SocialRepository.
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db, log: observability.NewRepoLogger("follows")}
}

func (r *socialRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *socialRepository) Follow(ctx context.Context, followerID, followingID uint) error {
	edge := models.Follow{FollowerID: followerID, FollowingID: followingID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
		r.log.LogError(ctx, err, "follow")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *socialRepository) Unfollow(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		r.log.LogError(ctx, err, "unfollow")
		return models.NewInternalError(err)
	}
	return nil
}

// ToggleFollow removes the edge if present, otherwise creates it. It returns
// whether the follower follows the target afterwards.
func (r *socialRepository) ToggleFollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	var following bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			following = false
			return nil
		}
		following = true
		edge := models.Follow{FollowerID: followerID, FollowingID: followingID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "toggle_follow")
		return false, models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"follower_id": followerID, "following_id": followingID, "following": following})
	return following, nil
}

// ToggleBookmark flips the bookmark of postID for userID and returns the new state.
func (r *socialRepository) ToggleBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	var bookmarked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			bookmarked = false
			return nil
		}
		bookmarked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Bookmark{UserID: userID, PostID: postID}).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "toggle_bookmark")
		return false, models.NewInternalError(err)
	}
	return bookmarked, nil
}
