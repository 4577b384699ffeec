package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
	"github.com/anonto42/minglr/backend/internal/repositories"
)

// ActivityRepository is the in-memory repositories.ActivityRepository
type ActivityRepository struct{ db *DB }

// NewActivityRepository creates an ActivityRepository over db
func NewActivityRepository(db *DB) *ActivityRepository { return &ActivityRepository{db: db} }

func (r *ActivityRepository) List(_ context.Context) ([]models.Activity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Activity, 0, len(r.db.activities))
	for _, a := range r.db.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ActivityRepository) Get(_ context.Context, id string) (*models.Activity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.activities[id]
	if !ok {
		return nil, fmt.Errorf("get activity %s: %w", id, apperrors.ErrNotFound)
	}
	return &a, nil
}

func (r *ActivityRepository) Count(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.activities)), nil
}

func (r *ActivityRepository) Upsert(_ context.Context, activity models.Activity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.activities[activity.ID] = activity
	return nil
}

// PostRepository is the in-memory repositories.PostRepository
type PostRepository struct{ db *DB }

// NewPostRepository creates a PostRepository over db
func NewPostRepository(db *DB) *PostRepository { return &PostRepository{db: db} }

func (r *PostRepository) Create(_ context.Context, post *models.Post) error {
	r.db.mu.Lock()
	if post.ID == "" {
		post.ID = r.db.newID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.Likes = 0
	post.LikedBy = []string{}
	post.Comments = []models.Comment{}
	stored := clonePost(post)
	r.db.posts[post.ID] = &stored
	r.db.mu.Unlock()

	r.db.publish(realtime.PostsTopic)
	return nil
}

func (r *PostRepository) Get(_ context.Context, id string) (*models.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.posts[id]
	if !ok {
		return nil, fmt.Errorf("get post %s: %w", id, apperrors.ErrNotFound)
	}
	c := clonePost(p)
	return &c, nil
}

func (r *PostRepository) List(_ context.Context, limit int64) ([]models.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Post, 0, len(r.db.posts))
	for _, p := range r.db.posts {
		out = append(out, clonePost(p))
	}
	repositories.SortPostsNewestFirst(out)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PostRepository) ToggleLike(_ context.Context, postID, userID string, event *models.OutboxEvent) (bool, error) {
	r.db.mu.Lock()
	p, ok := r.db.posts[postID]
	if !ok {
		r.db.mu.Unlock()
		return false, fmt.Errorf("toggle like on %s: %w", postID, apperrors.ErrNotFound)
	}
	liked := !p.LikedByUser(userID)
	if liked {
		p.LikedBy = append(p.LikedBy, userID)
		p.Likes++
		r.db.addOutbox(event)
	} else {
		out := make([]string, 0, len(p.LikedBy))
		for _, id := range p.LikedBy {
			if id != userID {
				out = append(out, id)
			}
		}
		p.LikedBy = out
		p.Likes--
	}
	r.db.mu.Unlock()

	r.db.publish(realtime.PostsTopic)
	return liked, nil
}

func (r *PostRepository) AddComment(_ context.Context, postID string, comment models.Comment, event *models.OutboxEvent) error {
	r.db.mu.Lock()
	p, ok := r.db.posts[postID]
	if !ok {
		r.db.mu.Unlock()
		return fmt.Errorf("add comment to %s: %w", postID, apperrors.ErrNotFound)
	}
	p.Comments = append(p.Comments, comment)
	r.db.addOutbox(event)
	r.db.mu.Unlock()

	r.db.publish(realtime.PostsTopic)
	return nil
}

func (r *PostRepository) Watch(ctx context.Context, limit int64) (<-chan []models.Post, error) {
	return realtime.Watch(ctx, r.db.bus, realtime.PostsTopic, func(ctx context.Context) ([]models.Post, error) {
		return r.List(ctx, limit)
	}, r.db.logger)
}
