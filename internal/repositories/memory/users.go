package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// UserRepository is the in-memory repositories.UserRepository
type UserRepository struct{ db *DB }

// NewUserRepository creates a UserRepository over db
func NewUserRepository(db *DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.profileLocked(id)
}

func (db *DB) profileLocked(id string) (*models.UserProfile, error) {
	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("get profile %s: %w", id, apperrors.ErrNotFound)
	}
	p := cloneProfile(u)
	p.Following = db.relatedLocked(id, true)
	p.Followers = db.relatedLocked(id, false)
	return &p, nil
}

// relatedLocked lists follow targets of id (outgoing) or its followers, oldest edge first.
func (db *DB) relatedLocked(id string, outgoing bool) []string {
	var rels []models.Relation
	for k, rel := range db.relations {
		if k.kind != models.RelationFollow {
			continue
		}
		if (outgoing && k.from == id) || (!outgoing && k.to == id) {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].FromID+rels[i].ToID < rels[j].FromID+rels[j].ToID
		}
		return rels[i].CreatedAt.Before(rels[j].CreatedAt)
	})
	out := make([]string, len(rels))
	for i, rel := range rels {
		if outgoing {
			out[i] = rel.ToID
		} else {
			out[i] = rel.FromID
		}
	}
	return out
}

func (r *UserRepository) CreateProfile(_ context.Context, profile *models.UserProfile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[profile.ID]; ok {
		return fmt.Errorf("create profile %s: %w", profile.ID, apperrors.ErrConflict)
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	stored := cloneProfile(profile)
	r.db.users[profile.ID] = &stored
	return nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) (*models.UserProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, fmt.Errorf("update profile %s: %w", id, apperrors.ErrNotFound)
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.Preferences != nil {
		u.Preferences = cloneStrings(update.Preferences)
	}
	return r.db.profileLocked(id)
}

func (r *UserRepository) AddToWishlist(_ context.Context, id, activityID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return fmt.Errorf("update wishlist %s: %w", id, apperrors.ErrNotFound)
	}
	for _, a := range u.Wishlist {
		if a == activityID {
			return nil
		}
	}
	u.Wishlist = append(u.Wishlist, activityID)
	return nil
}

func (r *UserRepository) RemoveFromWishlist(_ context.Context, id, activityID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return fmt.Errorf("update wishlist %s: %w", id, apperrors.ErrNotFound)
	}
	out := make([]string, 0, len(u.Wishlist))
	for _, a := range u.Wishlist {
		if a != activityID {
			out = append(out, a)
		}
	}
	u.Wishlist = out
	return nil
}

func (r *UserRepository) SearchByNamePrefix(_ context.Context, prefix, excludeID string, limit int) ([]models.UserProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	out := []models.UserProfile{}
	for _, u := range r.db.users {
		if u.ID != excludeID && strings.HasPrefix(strings.ToLower(u.Name), prefix) {
			out = append(out, cloneProfile(u))
		}
	}
	sortProfiles(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UserRepository) ListByIDs(_ context.Context, ids []string) ([]models.UserProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.UserProfile{}
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, cloneProfile(u))
		}
	}
	sortProfiles(out)
	return out, nil
}

func sortProfiles(ps []models.UserProfile) {
	sort.Slice(ps, func(i, j int) bool {
		return strings.ToLower(ps[i].Name) < strings.ToLower(ps[j].Name)
	})
}

// FollowRepository is the in-memory repositories.FollowRepository
type FollowRepository struct{ db *DB }

// NewFollowRepository creates a FollowRepository over db
func NewFollowRepository(db *DB) *FollowRepository { return &FollowRepository{db: db} }

func (r *FollowRepository) Follow(_ context.Context, followerID, followingID string, notification *models.Notification) error {
	r.db.mu.Lock()
	key := relationKey{from: followerID, to: followingID, kind: models.RelationFollow}
	if _, ok := r.db.relations[key]; ok {
		r.db.mu.Unlock()
		return fmt.Errorf("follow %s -> %s: %w", followerID, followingID, apperrors.ErrConflict)
	}
	r.db.relations[key] = models.Relation{FromID: followerID, ToID: followingID, Kind: models.RelationFollow, CreatedAt: time.Now().UTC()}
	if notification != nil {
		r.db.insertNotificationLocked(notification)
	}
	r.db.mu.Unlock()

	if notification != nil {
		r.db.publish(realtime.NotificationsTopic(notification.UserID))
	}
	return nil
}

func (r *FollowRepository) Unfollow(_ context.Context, followerID, followingID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := relationKey{from: followerID, to: followingID, kind: models.RelationFollow}
	if _, ok := r.db.relations[key]; !ok {
		return fmt.Errorf("unfollow %s -> %s: %w", followerID, followingID, apperrors.ErrNotFound)
	}
	delete(r.db.relations, key)
	return nil
}

func (r *FollowRepository) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.db.relations[relationKey{from: followerID, to: followingID, kind: models.RelationFollow}]
	return ok, nil
}

func (r *FollowRepository) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.relatedLocked(userID, true), nil
}

func (r *FollowRepository) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.relatedLocked(userID, false), nil
}
