package service

import (
	"context"
	"log/slog"

	"murmur/internal/featureflags"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
)

const inboxLimit = 50

// NotificationService manages the persisted notification inbox. Every
// operation is gated by the notification_inbox feature flag.
type NotificationService struct {
	repo  repository.NotificationRepository
	flags *featureflags.Manager
}

// InboxPage is a user's inbox with its unread count.
type InboxPage struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

func NewNotificationService(repo repository.NotificationRepository, flags *featureflags.Manager) *NotificationService {
	return &NotificationService{repo: repo, flags: flags}
}

// Enabled reports whether the inbox is on for userID.
func (s *NotificationService) Enabled(userID uint) bool {
	return s != nil && s.flags.Enabled(featureflags.NotificationInbox, userID)
}

func (s *NotificationService) disabled() error {
	return &models.AppError{Code: models.CodeNotFound, Message: "Notification inbox is not enabled"}
}

// Record stores an inbox entry for n.RecipientID. Self-notifications and
// recipients without the inbox are skipped. Storage failures are logged only.
func (s *NotificationService) Record(ctx context.Context, n *models.Notification) {
	if n.RecipientID == n.ActorID || !s.Enabled(n.RecipientID) {
		return
	}
	if err := s.repo.Create(ctx, n); err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "failed to record notification",
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("type", n.Type),
			slog.String("error", err.Error()),
		)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint) (*InboxPage, error) {
	if !s.Enabled(userID) {
		return nil, s.disabled()
	}
	items, err := s.repo.ListForUser(ctx, userID, inboxLimit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InboxPage{Notifications: items, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	if !s.Enabled(userID) {
		return s.disabled()
	}
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if !s.Enabled(userID) {
		return 0, s.disabled()
	}
	return s.repo.MarkAllRead(ctx, userID)
}
