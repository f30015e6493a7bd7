package service

import (
	"context"
	"fmt"
	"strings"

	"murmur/internal/events"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

// Feed paging bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	realtime    Realtime
	inbox       *NotificationService
	events      events.Publisher
}

type CreatePostInput struct {
	UserID   uint
	Content  string
	ImageURL *string
}

type ListPostsInput struct {
	Skip     int
	Limit    int
	ViewerID uint
}

type AddCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

// PostEvent is the payload of post.* integration events.
type PostEvent struct {
	PostID  uint `json:"post_id"`
	ActorID uint `json:"actor_id"`
	OwnerID uint `json:"owner_id"`
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	realtime Realtime,
	inbox *NotificationService,
	publisher events.Publisher,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		realtime:    realtimeOrNoop(realtime),
		inbox:       inbox,
		events:      publisherOrNoop(publisher),
	}
}

// CreatePost stores a post and broadcasts it to every connected client.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "posts", "CreatePost", in.UserID)
	defer func() { observability.EndSpan(span, err) }()

	content := strings.TrimSpace(in.Content)
	if err := validation.ValidateText("content", content, validation.MaxPostLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var image *string
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) != "" {
		u := strings.TrimSpace(*in.ImageURL)
		if err := validation.ValidateHTTPURL("image", u); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		image = &u
	}

	post := &models.Post{UserID: in.UserID, Content: content, ImageURL: image}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetDetail(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.realtime.PublishToAll(EventNewPost, created)
	emit(ctx, s.events, events.PostCreated, PostEvent{PostID: created.ID, ActorID: in.UserID, OwnerID: in.UserID})
	return created, nil
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetDetail(ctx, id, viewerID)
}

// ListPosts returns one page of the global feed, newest first.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*models.PostPage, error) {
	if in.Skip < 0 {
		return nil, models.NewValidationError("skip must not be negative")
	}
	switch {
	case in.Limit <= 0:
		in.Limit = DefaultPageSize
	case in.Limit > MaxPageSize:
		in.Limit = MaxPageSize
	}
	return s.postRepo.ListPage(ctx, in.Skip, in.Limit, in.ViewerID)
}

// ListByAuthor returns every post by authorID, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint) ([]models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, viewerID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// LikePost adds the user to the post's like set. Liking twice is a no-op.
func (s *PostService) LikePost(ctx context.Context, postID, userID uint) (*models.Post, error) {
	return s.react(ctx, postID, userID, true)
}

// DislikePost removes the user from the post's like set. Disliking a post
// that was not liked is a no-op.
func (s *PostService) DislikePost(ctx context.Context, postID, userID uint) (*models.Post, error) {
	return s.react(ctx, postID, userID, false)
}

func (s *PostService) react(ctx context.Context, postID, userID uint, like bool) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	var changed bool
	if like {
		changed, err = s.postRepo.Like(ctx, postID, userID)
	} else {
		changed, err = s.postRepo.Unlike(ctx, postID, userID)
	}
	if err != nil {
		return nil, err
	}

	if changed && post.UserID != userID {
		s.notifyReaction(ctx, post, userID, like)
	}
	return s.postRepo.GetDetail(ctx, postID, userID)
}

func (s *PostService) notifyReaction(ctx context.Context, post *models.Post, actorID uint, like bool) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return
	}

	kind, verb, key := models.NotificationLike, "liked", events.PostLiked
	if !like {
		kind, verb, key = models.NotificationDislike, "disliked", events.PostDisliked
	}
	message := fmt.Sprintf("%s %s your post", actor.Username, verb)

	s.realtime.PublishToUser(post.UserID, EventNotification, models.RealtimeNotification{
		Type:    kind,
		UserID:  actorID,
		User:    actor.Summary(),
		PostID:  post.ID,
		Message: message,
	})
	if like {
		postID := post.ID
		s.inbox.Record(ctx, &models.Notification{
			RecipientID: post.UserID,
			ActorID:     actorID,
			Type:        kind,
			PostID:      &postID,
			Message:     message,
		})
	}
	emit(ctx, s.events, key, PostEvent{PostID: post.ID, ActorID: actorID, OwnerID: post.UserID})
}

// AddComment appends a comment to a post and returns it with its author.
func (s *PostService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if err := validation.ValidateText("comment", content, validation.MaxCommentLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, UserID: in.UserID, Content: content}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		username := "Someone"
		if comment.User != nil {
			username = comment.User.Username
		}
		postID := post.ID
		s.inbox.Record(ctx, &models.Notification{
			RecipientID: post.UserID,
			ActorID:     in.UserID,
			Type:        models.NotificationComment,
			PostID:      &postID,
			Message:     username + " commented on your post",
		})
	}
	emit(ctx, s.events, events.PostCommented, PostEvent{PostID: post.ID, ActorID: in.UserID, OwnerID: post.UserID})
	return comment, nil
}

// DeletePost removes a post with its comments, likes and bookmarks. Only the author may delete.
func (s *PostService) DeletePost(ctx context.Context, postID, userID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "posts", "DeletePost", userID)
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	emit(ctx, s.events, events.PostDeleted, PostEvent{PostID: postID, ActorID: userID, OwnerID: userID})
	return nil
}
