package services

import (
	"context"
	"fmt"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

// NotificationService reads and acknowledges the caller's notifications.
type NotificationService struct {
	notifications repositories.NotificationRepository
	options
}

func NewNotificationService(notifications repositories.NotificationRepository, opts ...Option) *NotificationService {
	return &NotificationService{notifications: notifications, options: newOptions(opts)}
}

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	Total         int64                 `json:"total"`
}

// List returns a page of the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, page, limit int) (*NotificationPage, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.notifications.ListByRecipient(ctx, p.UserID, page, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{Notifications: items, Page: page, Limit: limit, Total: total}, nil
}

func (s *NotificationService) Grouped(ctx context.Context) (*models.GroupedNotifications, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.notifications.GetGrouped(ctx, p.UserID, s.now())
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int64, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return 0, err
	}
	return s.notifications.UnreadCount(ctx, p.UserID)
}

// MarkRead flags one of the caller's notifications as read. Other users' notifications are not found.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	return s.notifications.MarkRead(ctx, id, p.UserID)
}

// MarkAllRead flags every notification unread at call time and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.notifications.MarkAllRead(ctx, p.UserID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

// Subscribe streams the caller's notifications newest first until ctx is cancelled.
func (s *NotificationService) Subscribe(ctx context.Context) (<-chan []models.Notification, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.notifications.Watch(ctx, p.UserID)
}
