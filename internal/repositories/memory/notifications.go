package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
	"github.com/anonto42/minglr/backend/internal/repositories"
)

// NotificationRepository is the in-memory repositories.NotificationRepository
type NotificationRepository struct{ db *DB }

// NewNotificationRepository creates a NotificationRepository over db
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// insertNotificationLocked stores n unless its id exists. Callers hold db.mu.
func (db *DB) insertNotificationLocked(n *models.Notification) bool {
	if _, ok := db.notifications[n.ID]; ok {
		return false
	}
	if n.ID == "" {
		n.ID = db.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	stored := *n
	db.notifications[n.ID] = &stored
	return true
}

func (r *NotificationRepository) CreateIfAbsent(_ context.Context, n *models.Notification) (bool, error) {
	r.db.mu.Lock()
	created := r.db.insertNotificationLocked(n)
	r.db.mu.Unlock()
	if created {
		r.db.publish(realtime.NotificationsTopic(n.UserID))
	}
	return created, nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	all, _ := r.ListAll(ctx, userID)
	total := int64(len(all))
	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return []models.Notification{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *NotificationRepository) ListAll(_ context.Context, userID string) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range r.db.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	repositories.SortNotificationsNewestFirst(out)
	return out, nil
}

func (r *NotificationRepository) GetGrouped(ctx context.Context, userID string, now time.Time) (*models.GroupedNotifications, error) {
	all, _ := r.ListAll(ctx, userID)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	g := &models.GroupedNotifications{
		Today:     []models.Notification{},
		Yesterday: []models.Notification{},
		ThisWeek:  []models.Notification{},
		Older:     []models.Notification{},
	}
	for _, n := range all {
		switch {
		case !n.CreatedAt.Before(todayStart):
			g.Today = append(g.Today, n)
		case !n.CreatedAt.Before(yesterdayStart):
			g.Yesterday = append(g.Yesterday, n)
		case !n.CreatedAt.Before(weekStart):
			g.ThisWeek = append(g.ThisWeek, n)
		case len(g.Older) < 50:
			g.Older = append(g.Older, n)
		}
	}
	return g, nil
}

func (r *NotificationRepository) UnreadCount(_ context.Context, userID string) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var n int64
	for _, x := range r.db.notifications {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, userID string) error {
	r.db.mu.Lock()
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		r.db.mu.Unlock()
		return fmt.Errorf("mark read %s: %w", id, apperrors.ErrNotFound)
	}
	n.Read = true
	r.db.mu.Unlock()
	r.db.publish(realtime.NotificationsTopic(userID))
	return nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.db.mu.Lock()
	var changed int64
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	r.db.mu.Unlock()
	if changed > 0 {
		r.db.publish(realtime.NotificationsTopic(userID))
	}
	return changed, nil
}

func (r *NotificationRepository) Watch(ctx context.Context, userID string) (<-chan []models.Notification, error) {
	return realtime.Watch(ctx, r.db.bus, realtime.NotificationsTopic(userID), func(ctx context.Context) ([]models.Notification, error) {
		return r.ListAll(ctx, userID)
	}, r.db.logger)
}
