package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// userRecord is the users table row. Following/followers are not stored here.
type userRecord struct {
	ID          string                      `gorm:"primaryKey;size:128"`
	Name        string                      `gorm:"size:120"`
	NameLower   string                      `gorm:"size:120;index"`
	Avatar      string                      `gorm:"size:1024"`
	Email       string                      `gorm:"size:255;index"`
	Preferences datatypes.JSONSlice[string] `gorm:"not null"`
	Wishlist    datatypes.JSONSlice[string] `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (userRecord) TableName() string {
	return "users"
}

// Migrate creates or updates the PostgreSQL tables owned by this package
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRecord{}, &models.Relation{}, &models.Notification{})
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// GetProfile loads a profile together with both sides of its follow graph
func (r *PostgresUserRepository) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateGormErr(err, "get profile")
	}

	following, err := pluckRelated(ctx, r.db, "to_id", "from_id", id)
	if err != nil {
		return nil, fmt.Errorf("get profile following: %w", err)
	}
	followers, err := pluckRelated(ctx, r.db, "from_id", "to_id", id)
	if err != nil {
		return nil, fmt.Errorf("get profile followers: %w", err)
	}

	p := rec.toProfile()
	p.Following = following
	p.Followers = followers
	return p, nil
}

// CreateProfile inserts a profile, returning ErrConflict if the id is taken
func (r *PostgresUserRepository) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	rec := recordFromProfile(profile)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return fmt.Errorf("create profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("create profile %s: %w", profile.ID, apperrors.ErrConflict)
	}
	profile.CreatedAt = rec.CreatedAt
	return nil
}

// UpdateProfile applies the non-nil fields of update
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.UserProfile, error) {
	fields := map[string]any{}
	if update.Name != nil {
		fields["name"] = *update.Name
		fields["name_lower"] = strings.ToLower(*update.Name)
	}
	if update.Avatar != nil {
		fields["avatar"] = *update.Avatar
	}
	if update.Preferences != nil {
		fields["preferences"] = datatypes.JSONSlice[string](update.Preferences)
	}

	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("update profile %s: %w", id, apperrors.ErrNotFound)
		}
	}
	return r.GetProfile(ctx, id)
}

// AddToWishlist saves an activity; saving it twice keeps one entry
func (r *PostgresUserRepository) AddToWishlist(ctx context.Context, id, activityID string) error {
	return r.mutateWishlist(ctx, id, func(list []string) []string {
		for _, a := range list {
			if a == activityID {
				return list
			}
		}
		return append(list, activityID)
	})
}

// RemoveFromWishlist drops an activity from the wishlist if present
func (r *PostgresUserRepository) RemoveFromWishlist(ctx context.Context, id, activityID string) error {
	return r.mutateWishlist(ctx, id, func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, a := range list {
			if a != activityID {
				out = append(out, a)
			}
		}
		return out
	})
}

func (r *PostgresUserRepository) mutateWishlist(ctx context.Context, id string, fn func([]string) []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error; err != nil {
			return translateGormErr(err, "update wishlist")
		}
		next := fn(append([]string{}, rec.Wishlist...))
		return tx.Model(&userRecord{}).Where("id = ?", id).Update("wishlist", datatypes.JSONSlice[string](next)).Error
	})
}

// SearchByNamePrefix finds users whose name starts with prefix, ignoring case
func (r *PostgresUserRepository) SearchByNamePrefix(ctx context.Context, prefix, excludeID string, limit int) ([]models.UserProfile, error) {
	var recs []userRecord
	pattern := escapeLike(strings.ToLower(prefix)) + "%"
	err := r.db.WithContext(ctx).
		Where(`name_lower LIKE ? ESCAPE '\' AND id <> ?`, pattern, excludeID).
		Order("name_lower ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return toProfiles(recs), nil
}

// ListByIDs returns the profiles for ids without their follow lists
func (r *PostgresUserRepository) ListByIDs(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return []models.UserProfile{}, nil
	}
	var recs []userRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name_lower ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return toProfiles(recs), nil
}

func pluckRelated(ctx context.Context, db *gorm.DB, selectCol, whereCol, id string) ([]string, error) {
	ids := []string{}
	err := db.WithContext(ctx).Model(&models.Relation{}).
		Where(whereCol+" = ? AND kind = ?", id, models.RelationFollow).
		Order("created_at ASC").
		Pluck(selectCol, &ids).Error
	return ids, err
}

func recordFromProfile(p *models.UserProfile) userRecord {
	prefs := p.Preferences
	if prefs == nil {
		prefs = []string{}
	}
	wishlist := p.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return userRecord{
		ID:          p.ID,
		Name:        p.Name,
		NameLower:   strings.ToLower(p.Name),
		Avatar:      p.Avatar,
		Email:       p.Email,
		Preferences: prefs,
		Wishlist:    wishlist,
	}
}

func (rec userRecord) toProfile() *models.UserProfile {
	return &models.UserProfile{
		ID:          rec.ID,
		Name:        rec.Name,
		Avatar:      rec.Avatar,
		Email:       rec.Email,
		Preferences: append([]string{}, rec.Preferences...),
		Wishlist:    append([]string{}, rec.Wishlist...),
		Following:   []string{},
		Followers:   []string{},
		CreatedAt:   rec.CreatedAt,
	}
}

func toProfiles(recs []userRecord) []models.UserProfile {
	out := make([]models.UserProfile, len(recs))
	for i, rec := range recs {
		out[i] = *rec.toProfile()
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func translateGormErr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
