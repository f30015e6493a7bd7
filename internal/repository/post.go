package repository

import (
	"context"
	"errors"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines persistence operations for posts and their likes.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetDetail(ctx context.Context, id, viewerID uint) (*models.Post, error)
	ListPage(ctx context.Context, skip, limit int, viewerID uint) (*models.PostPage, error)
	ListByAuthor(ctx context.Context, authorID, viewerID uint) ([]models.Post, error)
	ListBookmarked(ctx context.Context, userID uint) ([]models.Post, error)
	Like(ctx context.Context, postID, userID uint) (bool, error)
	Unlike(ctx context.Context, postID, userID uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository returns a PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	ctx, span := observability.StartRepoSpan(ctx, "posts", "Create")
	defer span.End()

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

// GetByID loads the bare post row without author, comments or like data.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// GetDetail loads a post with its author, like set and comments oldest first.
func (r *postRepository) GetDetail(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC, comments.id ASC")
		}).
		Preload("Comments.User").
		First(&post, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}

	posts := []models.Post{post}
	if err := r.hydrate(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// newestFirst orders by creation time with the id as a tie-breaker.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("posts.created_at DESC").Order("posts.id DESC")
}

// ListPage over-fetches one row to decide whether another page exists.
func (r *postRepository) ListPage(ctx context.Context, skip, limit int, viewerID uint) (*models.PostPage, error) {
	ctx, span := observability.StartRepoSpan(ctx, "posts", "ListPage")
	defer span.End()

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Scopes(newestFirst).
		Preload("User").
		Offset(skip).
		Limit(limit + 1).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	page := &models.PostPage{Skip: skip, Limit: limit}
	if len(posts) > limit {
		page.HasMore = true
		posts = posts[:limit]
	}
	if err := r.hydrate(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	page.Posts = posts
	return page, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID, viewerID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Scopes(newestFirst).
		Preload("User").
		Where("posts.user_id = ?", authorID).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.hydrate(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListBookmarked returns the posts userID bookmarked, most recently bookmarked first.
func (r *postRepository) ListBookmarked(ctx context.Context, userID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Joins("JOIN bookmarks ON bookmarks.post_id = posts.id AND bookmarks.user_id = ?", userID).
		Preload("User").
		Order("bookmarks.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.hydrate(ctx, posts, userID); err != nil {
		return nil, err
	}
	return posts, nil
}

// Like adds userID to the post's like set. It reports whether the set changed.
func (r *postRepository) Like(ctx context.Context, postID, userID uint) (bool, error) {
	like := models.Like{UserID: userID, PostID: postID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "like")
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Unlike removes userID from the post's like set. It reports whether the set changed.
func (r *postRepository) Unlike(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "unlike")
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the post together with its comments, likes, bookmarks and
// inbox entries in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	ctx, span := observability.StartRepoSpan(ctx, "posts", "Delete")
	defer span.End()

	var removedComments int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, id).Error; err != nil {
			return err
		}

		res := tx.Where("post_id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removedComments = res.RowsAffected

		for _, dependent := range []interface{}{&models.Like{}, &models.Bookmark{}, &models.Notification{}} {
			if err := tx.Where("post_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.LogError(ctx, err, "delete")
		}
		return notFoundOr(err, "Post", id)
	}

	r.log.LogDelete(ctx, map[string]any{"post_id": id, "comments_removed": removedComments})
	return nil
}

type commentCount struct {
	PostID uint
	Count  int
}

// hydrate fills the computed like and comment fields of posts in two queries.
func (r *postRepository) hydrate(ctx context.Context, posts []models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uint, len(posts))
	index := make(map[uint]*models.Post, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		posts[i].Likes = []uint{}
		index[posts[i].ID] = &posts[i]
	}

	var likes []models.Like
	if err := r.db.WithContext(ctx).Where("post_id IN ?", ids).Order("id ASC").Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}
	for _, like := range likes {
		p := index[like.PostID]
		p.Likes = append(p.Likes, like.UserID)
		if viewerID != 0 && like.UserID == viewerID {
			p.Liked = true
		}
	}

	var counts []commentCount
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error; err != nil {
		return models.NewInternalError(err)
	}
	for _, c := range counts {
		index[c.PostID].CommentsCount = c.Count
	}

	for i := range posts {
		posts[i].LikesCount = len(posts[i].Likes)
	}
	return nil
}
