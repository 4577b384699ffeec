package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

const feedLimit = 100

// PostService manages the photo feed.
type PostService struct {
	posts repositories.PostRepository
	users repositories.UserRepository
	options
}

func NewPostService(posts repositories.PostRepository, users repositories.UserRepository, opts ...Option) *PostService {
	return &PostService{posts: posts, users: users, options: newOptions(opts)}
}

// author resolves the caller's current name and avatar, falling back to the session values.
func (s *PostService) author(ctx context.Context, p session.Principal) (string, string) {
	profile, err := s.users.GetProfile(ctx, p.UserID)
	if err != nil {
		return p.Name, p.Avatar
	}
	return profile.Name, profile.Avatar
}

func (s *PostService) Create(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, apperrors.Invalid("image is required")
	}
	name, avatar := s.author(ctx, p)
	post := &models.Post{
		UserID:     p.UserID,
		UserName:   name,
		UserAvatar: avatar,
		ImageURL:   req.ImageURL,
		ActivityID: req.ActivityID,
		Caption:    strings.TrimSpace(req.Caption),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context) ([]models.Post, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.posts.List(ctx, feedLimit)
}

// Subscribe streams the feed newest first until ctx is cancelled.
func (s *PostService) Subscribe(ctx context.Context) (<-chan []models.Post, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.posts.Watch(ctx, feedLimit)
}

// ToggleLike likes or unlikes a post for the caller and reports whether it is now liked.
// The owner is notified on a like by someone else.
func (s *PostService) ToggleLike(ctx context.Context, postID string) (bool, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return false, err
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return false, err
	}
	var event *models.OutboxEvent
	if post.UserID != p.UserID {
		event = &models.OutboxEvent{
			Type:       models.NotificationLike,
			ActorID:    p.UserID,
			ActorName:  p.Name,
			Recipients: []string{post.UserID},
			RelatedID:  postID,
			CreatedAt:  s.now().UTC(),
		}
	}
	liked, err := s.posts.ToggleLike(ctx, postID, p.UserID, event)
	if err != nil {
		return false, err
	}
	if liked && event != nil {
		s.kicker.Kick()
	}
	return liked, nil
}

// AddComment appends a comment and notifies the post owner when the author is someone else.
func (s *PostService) AddComment(ctx context.Context, postID, text string) (*models.Comment, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Invalid("comment text is required")
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	name, avatar := s.author(ctx, p)
	comment := models.Comment{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		UserName:   name,
		UserAvatar: avatar,
		Text:       text,
		CreatedAt:  now,
	}
	var event *models.OutboxEvent
	if post.UserID != p.UserID {
		event = &models.OutboxEvent{
			Type:       models.NotificationComment,
			ActorID:    p.UserID,
			ActorName:  p.Name,
			Recipients: []string{post.UserID},
			Text:       text,
			RelatedID:  postID,
			CreatedAt:  now,
		}
	}
	if err := s.posts.AddComment(ctx, postID, comment, event); err != nil {
		return nil, err
	}
	if event != nil {
		s.kicker.Kick()
	}
	return &comment, nil
}
