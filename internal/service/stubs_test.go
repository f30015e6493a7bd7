package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn        func(context.Context, *models.User) error
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getAccountFn    func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	getByProviderFn func(context.Context, string, string) (*models.User, error)
	searchFn        func(context.Context, string, int) ([]models.User, error)
	updateProfileFn func(context.Context, uint, models.ProfileUpdate) (*models.User, error)
	linkProviderFn  func(context.Context, uint, string, string) error
	loadRelationsFn func(context.Context, *models.User) error
	summariesFn     func(context.Context, []uint) (map[uint]models.UserSummary, error)
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetAccount(ctx context.Context, id uint) (*models.User, error) {
	return s.getAccountFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	return s.getByProviderFn(ctx, provider, providerID)
}
func (s *userRepoStub) Search(ctx context.Context, q string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, q, limit)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id uint, u models.ProfileUpdate) (*models.User, error) {
	return s.updateProfileFn(ctx, id, u)
}
func (s *userRepoStub) LinkProvider(ctx context.Context, id uint, provider, providerID string) error {
	return s.linkProviderFn(ctx, id, provider, providerID)
}
func (s *userRepoStub) LoadRelations(ctx context.Context, u *models.User) error {
	return s.loadRelationsFn(ctx, u)
}
func (s *userRepoStub) Summaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	return s.summariesFn(ctx, ids)
}

// noopUserRepo knows every id and no email, username or provider.
func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn: func(_ context.Context, u *models.User) error { u.ID = 100; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: fmt.Sprintf("user%d", id)}, nil
		},
		getAccountFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: fmt.Sprintf("user%d", id), Email: fmt.Sprintf("user%d@example.com", id)}, nil
		},
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		getByProviderFn: func(context.Context, string, string) (*models.User, error) { return nil, nil },
		searchFn:        func(context.Context, string, int) ([]models.User, error) { return nil, nil },
		updateProfileFn: func(_ context.Context, id uint, _ models.ProfileUpdate) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
		linkProviderFn:  func(context.Context, uint, string, string) error { return nil },
		loadRelationsFn: func(context.Context, *models.User) error { return nil },
		summariesFn: func(context.Context, []uint) (map[uint]models.UserSummary, error) {
			return map[uint]models.UserSummary{}, nil
		},
	}
}

// socialRepoStub is a stub for repository.SocialRepository backed by in-memory sets.
type socialRepoStub struct {
	follows   map[[2]uint]bool
	bookmarks map[[2]uint]bool
}

func newSocialRepoStub() *socialRepoStub {
	return &socialRepoStub{follows: map[[2]uint]bool{}, bookmarks: map[[2]uint]bool{}}
}

func (s *socialRepoStub) IsFollowing(_ context.Context, a, b uint) (bool, error) {
	return s.follows[[2]uint{a, b}], nil
}
func (s *socialRepoStub) Follow(_ context.Context, a, b uint) error {
	s.follows[[2]uint{a, b}] = true
	return nil
}
func (s *socialRepoStub) Unfollow(_ context.Context, a, b uint) error {
	delete(s.follows, [2]uint{a, b})
	return nil
}
func (s *socialRepoStub) ToggleFollow(_ context.Context, a, b uint) (bool, error) {
	k := [2]uint{a, b}
	if s.follows[k] {
		delete(s.follows, k)
		return false, nil
	}
	s.follows[k] = true
	return true, nil
}
func (s *socialRepoStub) ToggleBookmark(_ context.Context, userID, postID uint) (bool, error) {
	k := [2]uint{userID, postID}
	if s.bookmarks[k] {
		delete(s.bookmarks, k)
		return false, nil
	}
	s.bookmarks[k] = true
	return true, nil
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	getDetailFn      func(context.Context, uint, uint) (*models.Post, error)
	listPageFn       func(context.Context, int, int, uint) (*models.PostPage, error)
	listByAuthorFn   func(context.Context, uint, uint) ([]models.Post, error)
	listBookmarkedFn func(context.Context, uint) ([]models.Post, error)
	likeFn           func(context.Context, uint, uint) (bool, error)
	unlikeFn         func(context.Context, uint, uint) (bool, error)
	deleteFn         func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error { return s.createFn(ctx, p) }
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetDetail(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getDetailFn(ctx, id, viewerID)
}
func (s *postRepoStub) ListPage(ctx context.Context, skip, limit int, viewerID uint) (*models.PostPage, error) {
	return s.listPageFn(ctx, skip, limit, viewerID)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID, viewerID uint) ([]models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, viewerID)
}
func (s *postRepoStub) ListBookmarked(ctx context.Context, userID uint) ([]models.Post, error) {
	return s.listBookmarkedFn(ctx, userID)
}
func (s *postRepoStub) Like(ctx context.Context, postID, userID uint) (bool, error) {
	return s.likeFn(ctx, postID, userID)
}
func (s *postRepoStub) Unlike(ctx context.Context, postID, userID uint) (bool, error) {
	return s.unlikeFn(ctx, postID, userID)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }

// noopPostRepo serves every post as owned by user 1.
func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		},
		getDetailFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		listPageFn: func(_ context.Context, skip, limit int, _ uint) (*models.PostPage, error) {
			return &models.PostPage{Posts: []models.Post{}, Skip: skip, Limit: limit}, nil
		},
		listByAuthorFn:   func(context.Context, uint, uint) ([]models.Post, error) { return nil, nil },
		listBookmarkedFn: func(context.Context, uint) ([]models.Post, error) { return nil, nil },
		likeFn:           func(context.Context, uint, uint) (bool, error) { return true, nil },
		unlikeFn:         func(context.Context, uint, uint) (bool, error) { return true, nil },
		deleteFn:         func(context.Context, uint) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	created []models.Comment
}

func (s *commentRepoStub) Create(_ context.Context, c *models.Comment) error {
	c.ID = uint(len(s.created) + 1)
	c.User = &models.User{ID: c.UserID, Username: "commenter"}
	s.created = append(s.created, *c)
	return nil
}
func (s *commentRepoStub) ListByPost(_ context.Context, postID uint) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range s.created {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

// convRepoStub is an in-memory repository.ConversationRepository.
type convRepoStub struct {
	convs    map[[2]uint]*models.Conversation
	messages []models.Message
}

func newConvRepoStub() *convRepoStub {
	return &convRepoStub{convs: map[[2]uint]*models.Conversation{}}
}

func (s *convRepoStub) GetOrCreate(_ context.Context, a, b uint) (*models.Conversation, error) {
	lo, hi := models.ConversationPair(a, b)
	if c, ok := s.convs[[2]uint{lo, hi}]; ok {
		return c, nil
	}
	c := &models.Conversation{ID: uint(len(s.convs) + 1), UserLowID: lo, UserHighID: hi}
	s.convs[[2]uint{lo, hi}] = c
	return c, nil
}
func (s *convRepoStub) Find(_ context.Context, a, b uint) (*models.Conversation, error) {
	lo, hi := models.ConversationPair(a, b)
	return s.convs[[2]uint{lo, hi}], nil
}
func (s *convRepoStub) AddMessage(_ context.Context, m *models.Message) error {
	m.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *m)
	return nil
}
func (s *convRepoStub) ListMessages(_ context.Context, convID uint) ([]models.Message, error) {
	out := []models.Message{}
	for _, m := range s.messages {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (s *convRepoStub) ListForUser(context.Context, uint) ([]models.ConversationSummary, error) {
	return nil, nil
}
func (s *convRepoStub) MarkSeen(_ context.Context, convID, receiverID uint) (int64, error) {
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ConversationID == convID && m.ReceiverID == receiverID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

// notificationRepoStub is an in-memory repository.NotificationRepository.
type notificationRepoStub struct {
	items []models.Notification
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	n.ID = uint(len(s.items) + 1)
	s.items = append(s.items, *n)
	return nil
}
func (s *notificationRepoStub) ListForUser(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	out := []models.Notification{}
	for _, n := range s.items {
		if n.RecipientID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}
func (s *notificationRepoStub) CountUnread(_ context.Context, userID uint) (int64, error) {
	var n int64
	for _, item := range s.items {
		if item.RecipientID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}
func (s *notificationRepoStub) MarkRead(_ context.Context, userID, id uint) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].RecipientID == userID {
			s.items[i].IsRead = true
			return nil
		}
	}
	return models.NewNotFoundError("Notification", id)
}
func (s *notificationRepoStub) MarkAllRead(_ context.Context, userID uint) (int64, error) {
	var n int64
	for i := range s.items {
		if s.items[i].RecipientID == userID && !s.items[i].IsRead {
			s.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type pushed struct {
	userID  uint
	event   string
	payload any
}

// realtimeRecorder records every push. userID 0 marks a broadcast.
type realtimeRecorder struct {
	mu     sync.Mutex
	pushes []pushed
}

func (r *realtimeRecorder) PublishToUser(userID uint, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, pushed{userID: userID, event: event, payload: payload})
}

func (r *realtimeRecorder) PublishToAll(event string, payload any) {
	r.PublishToUser(0, event, payload)
}

func (r *realtimeRecorder) events(name string) []pushed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pushed
	for _, p := range r.pushes {
		if p.event == name {
			out = append(out, p)
		}
	}
	return out
}

// eventRecorder records integration events.
type eventRecorder struct {
	keys []string
	err  error
}

func (e *eventRecorder) Publish(_ context.Context, key string, _ any) error {
	e.keys = append(e.keys, key)
	return e.err
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	require.Equal(t, code, appErr.Code, "message: %s", appErr.Message)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}
