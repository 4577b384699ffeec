package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db     *gorm.DB
	bus    realtime.Bus
	logger *slog.Logger
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB, bus realtime.Bus, logger *slog.Logger) *PostgresFollowRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFollowRepository{db: db, bus: bus, logger: logger}
}

// Follow stores the edge and the follow notification atomically.
// Following someone twice returns ErrConflict and writes nothing.
func (r *PostgresFollowRepository) Follow(ctx context.Context, followerID, followingID string, notification *models.Notification) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel := models.Relation{FromID: followerID, ToID: followingID, Kind: models.RelationFollow}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rel)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConflict
		}
		if notification == nil {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(notification).Error
	})
	if err != nil {
		return fmt.Errorf("follow %s -> %s: %w", followerID, followingID, err)
	}
	if notification != nil {
		publish(ctx, r.bus, realtime.NotificationsTopic(notification.UserID), r.logger)
	}
	return nil
}

// Unfollow removes the edge, returning ErrNotFound if there was none
func (r *PostgresFollowRepository) Unfollow(ctx context.Context, followerID, followingID string) error {
	res := r.db.WithContext(ctx).
		Where("from_id = ? AND to_id = ? AND kind = ?", followerID, followingID, models.RelationFollow).
		Delete(&models.Relation{})
	if res.Error != nil {
		return fmt.Errorf("unfollow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("unfollow %s -> %s: %w", followerID, followingID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Relation{}).
		Where("from_id = ? AND to_id = ? AND kind = ?", followerID, followingID, models.RelationFollow).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("is following: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return pluckRelated(ctx, r.db, "to_id", "from_id", userID)
}

func (r *PostgresFollowRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return pluckRelated(ctx, r.db, "from_id", "to_id", userID)
}

func publish(ctx context.Context, bus realtime.Bus, topic string, logger *slog.Logger) {
	if bus == nil {
		return
	}
	if err := bus.Publish(context.WithoutCancel(ctx), topic); err != nil {
		logger.WarnContext(ctx, "publishing change signal", "topic", topic, "error", err)
	}
}
