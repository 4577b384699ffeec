package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// PostgresNotificationRepository implements NotificationRepository for PostgreSQL.
// Every committed change is signalled on the recipient's topic so Watch can reload.
type PostgresNotificationRepository struct {
	db     *gorm.DB
	bus    realtime.Bus
	logger *slog.Logger
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(db *gorm.DB, bus realtime.Bus, logger *slog.Logger) *PostgresNotificationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNotificationRepository{db: db, bus: bus, logger: logger}
}

func (r *PostgresNotificationRepository) CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("create notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	publish(ctx, r.bus, realtime.NotificationsTopic(n.UserID), r.logger)
	return true, nil
}

func (r *PostgresNotificationRepository) ListByRecipient(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	offset := (page - 1) * limit
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, total, nil
}

func (r *PostgresNotificationRepository) ListAll(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// GetGrouped splits notifications into today, yesterday, the rest of the week and the 50 most recent older ones
func (r *PostgresNotificationRepository) GetGrouped(ctx context.Context, userID string, now time.Time) (*models.GroupedNotifications, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	g := &models.GroupedNotifications{
		Today:     []models.Notification{},
		Yesterday: []models.Notification{},
		ThisWeek:  []models.Notification{},
		Older:     []models.Notification{},
	}
	db := r.db.WithContext(ctx)

	if err := db.Where("user_id = ? AND created_at >= ?", userID, todayStart).
		Order("created_at DESC").Find(&g.Today).Error; err != nil {
		return nil, fmt.Errorf("grouped notifications: %w", err)
	}
	if err := db.Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&g.Yesterday).Error; err != nil {
		return nil, fmt.Errorf("grouped notifications: %w", err)
	}
	if err := db.Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&g.ThisWeek).Error; err != nil {
		return nil, fmt.Errorf("grouped notifications: %w", err)
	}
	if err := db.Where("user_id = ? AND created_at < ?", userID, weekStart).
		Order("created_at DESC").Limit(50).Find(&g.Older).Error; err != nil {
		return nil, fmt.Errorf("grouped notifications: %w", err)
	}
	return g, nil
}

func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark read %s: %w", id, apperrors.ErrNotFound)
	}
	publish(ctx, r.bus, realtime.NotificationsTopic(userID), r.logger)
	return nil
}

// MarkAllRead flags every unread notification of the user in a single statement.
// Rows inserted after the statement runs stay unread.
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		publish(ctx, r.bus, realtime.NotificationsTopic(userID), r.logger)
	}
	return res.RowsAffected, nil
}

func (r *PostgresNotificationRepository) Watch(ctx context.Context, userID string) (<-chan []models.Notification, error) {
	return realtime.Watch(ctx, r.bus, realtime.NotificationsTopic(userID), func(ctx context.Context) ([]models.Notification, error) {
		return r.ListAll(ctx, userID)
	}, r.logger)
}
