package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

const searchLimit = 20

// IdentityProvider creates accounts with the external auth provider.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (uid string, err error)
}

// UserService manages profiles, wishlists and the follow graph.
type UserService struct {
	users    repositories.UserRepository
	follows  repositories.FollowRepository
	identity IdentityProvider
	options
}

func NewUserService(users repositories.UserRepository, follows repositories.FollowRepository, identity IdentityProvider, opts ...Option) *UserService {
	return &UserService{users: users, follows: follows, identity: identity, options: newOptions(opts)}
}

// EnsureProfile returns the profile of a verified identity, creating it with defaults on first sign-in.
func (s *UserService) EnsureProfile(ctx context.Context, p session.Principal) (*models.UserProfile, error) {
	if p.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	profile, err := s.users.GetProfile(ctx, p.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	profile = models.NewProfile(p.UserID, p.Name, p.Avatar, p.Email)
	profile.CreatedAt = s.now().UTC()
	if err := s.users.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// created concurrently by another sign-in
			return s.users.GetProfile(ctx, p.UserID)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.InfoContext(ctx, "profile created", "user_id", p.UserID)
	return profile, nil
}

// Signup creates the account and its profile.
func (s *UserService) Signup(ctx context.Context, req models.SignupRequest) (*models.UserProfile, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("signup: %w", apperrors.ErrPermissionDenied)
	}
	uid, err := s.identity.CreateUser(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.EnsureProfile(ctx, session.Principal{UserID: uid, Name: req.DisplayName, Email: req.Email})
}

func (s *UserService) Me(ctx context.Context) (*models.UserProfile, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.GetProfile(ctx, p.UserID)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.users.GetProfile(ctx, id)
}

// UpdateProfile changes the caller's name, avatar or preferences.
func (s *UserService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.Invalid("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Preferences != nil {
		update.Preferences = dedupe(update.Preferences)
	}
	return s.users.UpdateProfile(ctx, p.UserID, update)
}

func (s *UserService) AddToWishlist(ctx context.Context, activityID string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	return s.users.AddToWishlist(ctx, p.UserID, activityID)
}

func (s *UserService) RemoveFromWishlist(ctx context.Context, activityID string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	return s.users.RemoveFromWishlist(ctx, p.UserID, activityID)
}

// Search finds users by name prefix, excluding the caller. Store errors yield an empty result.
func (s *UserService) Search(ctx context.Context, query string) ([]models.UserCompact, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.UserCompact{}, nil
	}
	users, err := s.users.SearchByNamePrefix(ctx, query, p.UserID, searchLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "searching users", "error", err)
		return []models.UserCompact{}, nil
	}
	return compact(users), nil
}

// Follow makes the caller follow targetID and notifies the target in the same write.
func (s *UserService) Follow(ctx context.Context, targetID string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	if targetID == p.UserID {
		return apperrors.Invalid("you cannot follow yourself")
	}
	if _, err := s.users.GetProfile(ctx, targetID); err != nil {
		return err
	}
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    targetID,
		ActorID:   p.UserID,
		UserName:  p.Name,
		Type:      models.NotificationFollow,
		Text:      "started following you",
		RelatedID: p.UserID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.follows.Follow(ctx, p.UserID, targetID, n); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user followed", "follower_id", p.UserID, "following_id", targetID)
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, targetID string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	return s.follows.Unfollow(ctx, p.UserID, targetID)
}

func (s *UserService) Followers(ctx context.Context, userID string) ([]models.UserCompact, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Profiles(ctx, ids)
}

func (s *UserService) Following(ctx context.Context, userID string) ([]models.UserCompact, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Profiles(ctx, ids)
}

// Friends lists users the caller follows who follow back.
func (s *UserService) Friends(ctx context.Context) ([]models.UserCompact, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	following, err := s.follows.FollowingIDs(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	followers, err := s.follows.FollowerIDs(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	back := make(map[string]bool, len(followers))
	for _, id := range followers {
		back[id] = true
	}
	var mutual []string
	for _, id := range following {
		if back[id] {
			mutual = append(mutual, id)
		}
	}
	return s.Profiles(ctx, mutual)
}

// Profiles returns the compact profiles of ids. Unknown ids are skipped.
func (s *UserService) Profiles(ctx context.Context, ids []string) ([]models.UserCompact, error) {
	if len(ids) == 0 {
		return []models.UserCompact{}, nil
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return compact(users), nil
}

func compact(users []models.UserProfile) []models.UserCompact {
	out := make([]models.UserCompact, len(users))
	for i := range users {
		out[i] = users[i].ToCompact()
	}
	return out
}
