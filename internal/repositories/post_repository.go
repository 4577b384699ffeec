package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	outbox     *mongo.Collection
	logger     *slog.Logger
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database, logger *slog.Logger) *MongoPostRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoPostRepository{
		client:     db.Client(),
		collection: db.Collection(postsCollection),
		outbox:     db.Collection(outboxCollection),
		logger:     logger,
	}
}

// Create inserts a post with no likes or comments
func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = primitive.NewObjectID().Hex()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.Likes = 0
	post.LikedBy = []string{}
	post.Comments = []models.Comment{}

	if _, err := r.collection.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Get retrieves a post by ID
func (r *MongoPostRepository) Get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("get post %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// List retrieves the newest posts
func (r *MongoPostRepository) List(ctx context.Context, limit int64) ([]models.Post, error) {
	posts := []models.Post{}
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// ToggleLike flips the user's like with conditional updates so concurrent toggles never double count.
func (r *MongoPostRepository) ToggleLike(ctx context.Context, postID, userID string, event *models.OutboxEvent) (bool, error) {
	var liked bool
	err := withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		res, err := r.collection.UpdateOne(sc,
			bson.M{"_id": postID, "liked_by": bson.M{"$ne": userID}},
			bson.M{"$addToSet": bson.M{"liked_by": userID}, "$inc": bson.M{"likes": 1}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 1 {
			liked = true
			return insertOutbox(sc, r.outbox, event)
		}

		res, err = r.collection.UpdateOne(sc,
			bson.M{"_id": postID, "liked_by": userID},
			bson.M{"$pull": bson.M{"liked_by": userID}, "$inc": bson.M{"likes": -1}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apperrors.ErrNotFound
		}
		liked = false
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle like on %s: %w", postID, err)
	}
	return liked, nil
}

// AddComment appends a comment and its outbox event in one transaction
func (r *MongoPostRepository) AddComment(ctx context.Context, postID string, comment models.Comment, event *models.OutboxEvent) error {
	err := withTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		res, err := r.collection.UpdateOne(sc, bson.M{"_id": postID}, bson.M{"$push": bson.M{"comments": comment}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apperrors.ErrNotFound
		}
		return insertOutbox(sc, r.outbox, event)
	})
	if err != nil {
		return fmt.Errorf("add comment to %s: %w", postID, err)
	}
	return nil
}

// Watch reloads the newest posts on every change to the collection
func (r *MongoPostRepository) Watch(ctx context.Context, limit int64) (<-chan []models.Post, error) {
	signals, err := changeSignals(ctx, r.collection, mongo.Pipeline{}, r.logger)
	if err != nil {
		return nil, err
	}
	return realtime.Snapshots(ctx, signals, func(ctx context.Context) ([]models.Post, error) {
		return r.List(ctx, limit)
	}, r.logger), nil
}
