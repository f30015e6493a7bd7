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

// SearchLimit caps user search results.
const SearchLimit = 10

// UserService implements profile reads and edits plus the follow and bookmark toggles.
type UserService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
	postRepo   repository.PostRepository
	inbox      *NotificationService
	events     events.Publisher
}

type UpdateProfileInput struct {
	UserID uint
	models.ProfileUpdate
}

// FollowEvent is the payload of user.followed.
type FollowEvent struct {
	FollowerID  uint `json:"follower_id"`
	FollowingID uint `json:"following_id"`
}

func NewUserService(
	userRepo repository.UserRepository,
	socialRepo repository.SocialRepository,
	postRepo repository.PostRepository,
	inbox *NotificationService,
	publisher events.Publisher,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		socialRepo: socialRepo,
		postRepo:   postRepo,
		inbox:      inbox,
		events:     publisherOrNoop(publisher),
	}
}

// GetProfile returns the user with follower, following and bookmark sets filled in.
func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.LoadRelations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetAccount is GetProfile for the owner. It bypasses the profile cache so the
// email address is present.
func (s *UserService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	user, err := s.userRepo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.LoadRelations(ctx, user); err != nil {
		return nil, err
	}
	account := user.Account()
	return &account, nil
}

func (s *UserService) Search(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	users, err := s.userRepo.Search(ctx, query, SearchLimit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if in.Empty() {
		return nil, models.NewValidationError("No profile fields supplied")
	}
	if err := validateProfile(&in.ProfileUpdate); err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateProfile(ctx, in.UserID, in.ProfileUpdate)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.LoadRelations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func validateProfile(p *models.ProfileUpdate) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
		if err := validation.ValidateText("name", name, validation.MaxNameLength); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Bio != nil {
		if err := validation.ValidateMaxLength("bio", *p.Bio, validation.MaxBioLength); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Link != nil && *p.Link != "" {
		if err := validation.ValidateMaxLength("link", *p.Link, validation.MaxLinkLength); err != nil {
			return models.NewValidationError(err.Error())
		}
		if err := validation.ValidateHTTPURL("link", *p.Link); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Avatar != nil && *p.Avatar != "" {
		if err := validation.ValidateHTTPURL("avatar", *p.Avatar); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if p.Skills != nil {
		if err := validation.ValidateSkills(*p.Skills); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

func (s *UserService) checkFollowTarget(ctx context.Context, actorID, targetID uint) (*models.User, error) {
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// ToggleFollow follows targetID if actorID does not follow it yet and
// unfollows otherwise. It returns the new state.
func (s *UserService) ToggleFollow(ctx context.Context, actorID, targetID uint) (_ bool, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "users", "ToggleFollow", actorID)
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.checkFollowTarget(ctx, actorID, targetID); err != nil {
		return false, err
	}
	following, err := s.socialRepo.ToggleFollow(ctx, actorID, targetID)
	if err != nil {
		return false, err
	}
	if following {
		s.followed(ctx, actorID, targetID)
	}
	return following, nil
}

// Follow is the idempotent form of ToggleFollow for the follow direction.
func (s *UserService) Follow(ctx context.Context, actorID, targetID uint) error {
	if _, err := s.checkFollowTarget(ctx, actorID, targetID); err != nil {
		return err
	}
	already, err := s.socialRepo.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := s.socialRepo.Follow(ctx, actorID, targetID); err != nil {
		return err
	}
	s.followed(ctx, actorID, targetID)
	return nil
}

// Unfollow removes the edge. Unfollowing someone not followed is a no-op.
func (s *UserService) Unfollow(ctx context.Context, actorID, targetID uint) error {
	if _, err := s.checkFollowTarget(ctx, actorID, targetID); err != nil {
		return err
	}
	return s.socialRepo.Unfollow(ctx, actorID, targetID)
}

func (s *UserService) followed(ctx context.Context, actorID, targetID uint) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	message := "You have a new follower"
	if err == nil {
		message = actor.Username + " started following you"
	}
	s.inbox.Record(ctx, &models.Notification{
		RecipientID: targetID,
		ActorID:     actorID,
		Type:        models.NotificationFollow,
		Message:     message,
	})
	emit(ctx, s.events, events.UserFollowed, FollowEvent{FollowerID: actorID, FollowingID: targetID})
}

// ToggleBookmark flips postID in the user's bookmarks and returns the new state.
func (s *UserService) ToggleBookmark(ctx context.Context, userID, postID uint) (bool, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return false, err
	}
	return s.socialRepo.ToggleBookmark(ctx, userID, postID)
}

// ListBookmarks returns the user's bookmarked posts, newest first.
func (s *UserService) ListBookmarks(ctx context.Context, userID uint) ([]models.Post, error) {
	posts, err := s.postRepo.ListBookmarked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}
